package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/egor/soportebot/models"
)

// CreateTicket выполняет POST /tickets. Это первая фаза создания тикета;
// вложения загружаются отдельными запросами после получения ticket_id.
func (c *Client) CreateTicket(ctx context.Context, req models.CreateTicketRequest) (*models.TicketCreated, error) {
	var out models.TicketCreated
	if err := c.doJSON(ctx, http.MethodPost, "/tickets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadTicketFile загружает одно вложение в уже созданный тикет
// (POST /tickets/{id}/upload, поля file и username).
func (c *Client) UploadTicketFile(ctx context.Context, ticketID, filename string, file io.Reader, username string) error {
	path := fmt.Sprintf("/tickets/%s/upload", escapePath(ticketID))
	fields := map[string]string{"username": username}
	return c.doMultipart(ctx, path, "file", filename, file, fields, nil)
}

// TicketFile - запись о вложении тикета
type TicketFile struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
}

// GetTicketFiles возвращает вложения тикета (GET /api/tickets/{id}/files)
func (c *Client) GetTicketFiles(ctx context.Context, ticketID string) ([]TicketFile, error) {
	var files []TicketFile
	path := fmt.Sprintf("/api/tickets/%s/files", escapePath(ticketID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// FileViewURL возвращает адрес просмотра вложения
func (c *Client) FileViewURL(fileID int) string {
	return fmt.Sprintf("%s/api/files/%d/view", c.baseURL, fileID)
}

// LogSolved регистрирует случай, решённый без эскалации
// (POST /tickets/log-solved).
func (c *Client) LogSolved(ctx context.Context, entry models.SolvedLog) error {
	return c.doJSON(ctx, http.MethodPost, "/tickets/log-solved", entry, nil)
}

// LogInteraction пишет действие пользователя в журнал взаимодействий
// (POST /log/interaction). Вызывающая сторона глотает ошибки: журнал
// не должен мешать диалогу.
func (c *Client) LogInteraction(ctx context.Context, entry models.InteractionLog) error {
	return c.doJSON(ctx, http.MethodPost, "/log/interaction", entry, nil)
}

// GetAdminTickets возвращает полный список тикетов (GET /api/admin/tickets)
func (c *Client) GetAdminTickets(ctx context.Context) ([]models.AdminTicket, error) {
	var tickets []models.AdminTicket
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/tickets", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// UpdateTicketStatus меняет статус тикета (PUT /api/admin/tickets/{id})
func (c *Client) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	path := fmt.Sprintf("/api/admin/tickets/%s", escapePath(ticketID))
	body := map[string]string{"status": status}
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

// AssignTicket назначает тикет технику (POST /api/admin/tickets/{id}/assign)
func (c *Client) AssignTicket(ctx context.Context, ticketID, adminUsername string) error {
	path := fmt.Sprintf("/api/admin/tickets/%s/assign", escapePath(ticketID))
	body := map[string]string{"admin_username": adminUsername}
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// ReassignTicketUser переносит тикет на другого пользователя
// (POST /api/admin/tickets/{id}/reassign).
func (c *Client) ReassignTicketUser(ctx context.Context, ticketID, username string) error {
	path := fmt.Sprintf("/api/admin/tickets/%s/reassign", escapePath(ticketID))
	body := map[string]string{"username": username}
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// RateTicket отправляет оценку закрытого тикета
// (POST /api/tickets/{id}/rate).
func (c *Client) RateTicket(ctx context.Context, ticketID string, rating int, comment string) error {
	path := fmt.Sprintf("/api/tickets/%s/rate", escapePath(ticketID))
	body := map[string]interface{}{"rating": rating, "comment": comment}
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

package notifications

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/egor/soportebot/models"
)

// DefaultPollInterval - период опроса списка тикетов
const DefaultPollInterval = 10 * time.Second

// TicketLister - источник списка тикетов. Реализуется *backend.Client.
type TicketLister interface {
	GetAdminTickets(ctx context.Context) ([]models.AdminTicket, error)
}

// Poller периодически опрашивает бэкенд и публикует уведомления о тикетах,
// назначенных текущему админу и ожидающих обработки. Опрос только добавляет:
// существующие записи журнала не меняются, дедупликацию выполняет центр.
// Ошибки транспорта логируются и молча повторяются на следующем тике.
type Poller struct {
	api      TicketLister
	center   *Center
	admin    string
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPoller создаёт поллер; interval <= 0 означает период по умолчанию
func NewPoller(api TicketLister, center *Center, admin string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		api:      api,
		center:   center,
		admin:    admin,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run опрашивает бэкенд до отмены контекста или вызова Stop.
// Первый опрос выполняется сразу, не дожидаясь первого тика.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[poller] опрос тикетов для %s каждые %s", p.admin, p.interval)
	p.check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			log.Printf("[poller] опрос остановлен")
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// Stop завершает опрос (вызывается при завершении процесса)
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) check(ctx context.Context) {
	tickets, err := p.api.GetAdminTickets(ctx)
	if err != nil {
		// без backoff: следующий тик повторит запрос
		log.Printf("[poller] ошибка опроса тикетов: %v", err)
		return
	}

	for _, ticket := range tickets {
		if ticket.AssignedTo != p.admin {
			continue
		}
		if strings.TrimSpace(ticket.Status) != models.TicketStatusPending {
			continue
		}
		snapshot := ticket
		p.center.Publish(models.Notification{
			Type:       models.NotificationNewTicket,
			Title:      "🎫 Nuevo Ticket Asignado",
			Message:    fmt.Sprintf("Se te ha asignado el ticket: %s", ticket.ID),
			TicketID:   ticket.ID,
			Timestamp:  time.Now(),
			TicketData: &snapshot,
		})
	}
}

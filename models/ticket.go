package models

// TicketContext - накопленный контекст диалога, который уходит в тело тикета.
// Имена полей повторяют контракт бэкенда.
type TicketContext struct {
	CategoryKey        string   `json:"categoryKey,omitempty"`
	SubcategoryKey     string   `json:"subcategoryKey,omitempty"`
	ProblemDescription string   `json:"problemDescription,omitempty"`
	FinalOptionsTried  []string `json:"finalOptionsTried,omitempty"`
}

// CreateTicketRequest - тело POST /tickets
type CreateTicketRequest struct {
	Context        TicketContext `json:"context"`
	User           User          `json:"user"`
	PreferredAdmin string        `json:"preferred_admin,omitempty"`
}

// TicketCreated - ответ бэкенда на создание тикета
type TicketCreated struct {
	TicketID   string `json:"ticket_id"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// Статусы тикета на стороне бэкенда
const (
	TicketStatusPending  = "PE"
	TicketStatusFinished = "FN"
)

// AdminTicket представляет собой тикет из списка GET /api/admin/tickets.
// Имена полей - как их отдаёт бэкенд (legacy-схема БД).
type AdminTicket struct {
	ID         string `json:"ticket_id_ticket"`
	Subject    string `json:"ticket_asu_ticket,omitempty"`
	Username   string `json:"ticket_tusua_ticket,omitempty"`
	AssignedTo string `json:"ticket_asignado_a,omitempty"`
	Status     string `json:"ticket_est_ticket,omitempty"`
}

// InteractionLog - тело POST /log/interaction (fire-and-forget журнал действий)
type InteractionLog struct {
	SessionID   string `json:"sessionId"`
	Username    string `json:"username"`
	ActionType  string `json:"actionType"`
	ActionValue string `json:"actionValue"`
	BotResponse string `json:"botResponse"`
}

// SolvedLog - тело POST /tickets/log-solved
type SolvedLog struct {
	Context TicketContext `json:"context"`
	User    User          `json:"user"`
}

// UploadResult - результат загрузки одного вложения при создании тикета.
// Частичный провал допустим: тикет уже создан и не откатывается.
type UploadResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

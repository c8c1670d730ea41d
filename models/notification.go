package models

import "time"

// Типы уведомлений
const (
	NotificationNewTicket = "new_ticket"
)

// Notification представляет собой запись в локальном журнале уведомлений.
// Ключ уникальности - пара (TicketID, Type); повторная вставка той же пары
// не имеет эффекта.
type Notification struct {
	Type       string       `json:"type"`
	Title      string       `json:"title"`
	Message    string       `json:"message"`
	TicketID   string       `json:"ticketId"`
	Timestamp  time.Time    `json:"timestamp"`
	Read       bool         `json:"read"`
	TicketData *AdminTicket `json:"ticketData,omitempty"` // снимок тикета, если пришёл из поллинга
}

// NotificationSettings - настройки центра уведомлений. Хранятся в локальной
// базе; при загрузке накладываются поверх значений по умолчанию.
type NotificationSettings struct {
	Sound                string `json:"sound"`           // default|chime|alert|message|custom
	Volume               int    `json:"volume"`          // 0–100
	AutoMarkAsRead       bool   `json:"autoMarkAsRead"`
	DesktopNotifications bool   `json:"desktopNotifications"`
	CustomSoundPath      string `json:"customSoundPath,omitempty"`
}

// DefaultNotificationSettings возвращает настройки по умолчанию
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Sound:                "default",
		Volume:               70,
		AutoMarkAsRead:       true,
		DesktopNotifications: true,
	}
}

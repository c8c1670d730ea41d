package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/egor/soportebot/models"
)

// pushEnvelope - конверт сообщения push-канала
type pushEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ticketPush - полезная нагрузка события new_ticket_notification
type ticketPush struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	TicketID string `json:"ticket_id"`
}

// PushListener слушает push-канал бэкенда. Источник равноправен поллеру:
// события уходят в тот же канал центра и дедуплицируются тем же журналом.
// Разорванное соединение не переподключается - до перезапуска процесса
// пропуски закрывает поллинг.
type PushListener struct {
	url    string
	admin  string
	center *Center
}

// NewPushListener создаёт слушателя push-канала
func NewPushListener(url, admin string, center *Center) *PushListener {
	return &PushListener{url: url, admin: admin, center: center}
}

// Run подключается, объявляет админа онлайн и читает события до разрыва
// соединения или отмены контекста.
func (l *PushListener) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("подключение к push-каналу: %w", err)
	}
	log.Printf("[push] подключено к %s", l.url)

	// закрытие соединения по отмене контекста разблокирует чтение
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	online := struct {
		Type    string `json:"type"`
		Payload struct {
			Username string `json:"username"`
		} `json:"payload"`
	}{Type: "admin_online"}
	online.Payload.Username = l.admin
	if err := conn.WriteJSON(online); err != nil {
		return fmt.Errorf("регистрация admin_online: %w", err)
	}

	for {
		var env pushEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[push] соединение разорвано: %v", err)
			return nil
		}

		if env.Type != "new_ticket_notification" {
			continue
		}
		var event ticketPush
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			log.Printf("[push] некорректное событие: %v", err)
			continue
		}

		l.center.Publish(models.Notification{
			Type:      models.NotificationNewTicket,
			Title:     event.Title,
			Message:   event.Message,
			TicketID:  event.TicketID,
			Timestamp: time.Now(),
		})
	}
}

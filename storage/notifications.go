package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/egor/soportebot/models"
)

// InsertNotification добавляет уведомление в журнал. Вставка идемпотентна
// по паре (ticket_id, type): первый писатель побеждает, повтор - no-op.
// Возвращает true, если запись действительно добавлена.
func (s *Store) InsertNotification(n models.Notification) (bool, error) {
	var ticketData sql.NullString
	if n.TicketData != nil {
		data, err := json.Marshal(n.TicketData)
		if err != nil {
			return false, fmt.Errorf("маршализация снимка тикета: %w", err)
		}
		ticketData = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO notifications (ticket_id, type, title, message, timestamp, read, ticket_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.TicketID, n.Type, n.Title, n.Message, n.Timestamp.UTC().Format(time.RFC3339Nano), boolToInt(n.Read), ticketData,
	)
	if err != nil {
		return false, fmt.Errorf("вставка уведомления: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListNotifications возвращает журнал в порядке «новые сверху»
func (s *Store) ListNotifications() ([]models.Notification, error) {
	rows, err := s.db.Query(
		`SELECT ticket_id, type, title, message, timestamp, read, ticket_data
		 FROM notifications ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n          models.Notification
			ts         string
			read       int
			ticketData sql.NullString
		)
		if err := rows.Scan(&n.TicketID, &n.Type, &n.Title, &n.Message, &ts, &read, &ticketData); err != nil {
			return nil, fmt.Errorf("скан строки журнала: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			n.Timestamp = t
		}
		n.Read = read != 0
		if ticketData.Valid {
			var snapshot models.AdminTicket
			if err := json.Unmarshal([]byte(ticketData.String), &snapshot); err == nil {
				n.TicketData = &snapshot
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount возвращает число непрочитанных уведомлений
func (s *Store) UnreadCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("подсчёт непрочитанных: %w", err)
	}
	return count, nil
}

// MarkAllRead помечает все уведомления прочитанными
func (s *Store) MarkAllRead() error {
	_, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE read = 0`)
	return err
}

// RemoveNotification удаляет уведомления тикета из журнала
func (s *Store) RemoveNotification(ticketID string) error {
	_, err := s.db.Exec(`DELETE FROM notifications WHERE ticket_id = ?`, ticketID)
	return err
}

// ClearNotifications очищает журнал целиком
func (s *Store) ClearNotifications() error {
	_, err := s.db.Exec(`DELETE FROM notifications`)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

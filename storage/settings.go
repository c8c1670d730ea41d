package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/egor/soportebot/models"
)

// SaveSettings сохраняет настройки целиком (последняя запись побеждает)
func (s *Store) SaveSettings(settings models.NotificationSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("маршализация настроек: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO settings (id, data) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		string(data),
	)
	return err
}

// LoadSettings читает настройки, накладывая сохранённые значения поверх
// значений по умолчанию: явно заданные поля побеждают, отсутствующие
// остаются дефолтными.
func (s *Store) LoadSettings() (models.NotificationSettings, error) {
	settings := models.DefaultNotificationSettings()

	var data string
	err := s.db.QueryRow(`SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("чтение настроек: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return models.DefaultNotificationSettings(), fmt.Errorf("разбор настроек: %w", err)
	}
	return settings, nil
}

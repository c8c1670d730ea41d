// Package storage - локальное долговременное хранилище центра уведомлений:
// журнал уведомлений и настройки. Аналог localStorage браузерной версии,
// живёт в SQLite-файле в профиле админа.
//
// Несколько одновременно запущенных процессов перезаписывают друг друга по
// принципу «последняя запись побеждает» - это принятое упрощение, а не
// гарантируемый инвариант.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	timestamp   TEXT NOT NULL,
	read        INTEGER NOT NULL DEFAULT 0,
	ticket_data TEXT,
	UNIQUE (ticket_id, type)
);

CREATE TABLE IF NOT EXISTS settings (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);
`

// Store оборачивает локальную базу
type Store struct {
	db *sql.DB
}

// Open открывает (и при необходимости создаёт) локальную базу
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// одна связь: база локальная, конкурентных писателей внутри процесса нет
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("применение схемы: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает базу
func (s *Store) Close() error { return s.db.Close() }

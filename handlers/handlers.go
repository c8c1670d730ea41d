// Package handlers - HTTP и WebSocket обработчики сервера виджета.
package handlers

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/egor/soportebot/backend"
	"github.com/egor/soportebot/bot"
	"github.com/egor/soportebot/kb"
	"github.com/egor/soportebot/models"
	websocketpkg "github.com/egor/soportebot/websocket"
)

var (
	base   *kb.KnowledgeBase
	api    *backend.Client
	hub    *websocketpkg.Hub
	delays bot.Delays

	sessionsMu sync.RWMutex
	sessions   = make(map[uuid.UUID]*session)
)

// session связывает WebSocket-клиента с движком диалога
type session struct {
	id     uuid.UUID
	client *websocketpkg.Client
	engine *bot.Engine
	user   models.User

	// каталог для временных файлов вложений
	tmpDir string

	cancel context.CancelFunc
}

// Configure задаёт зависимости пакета; вызывается из main до старта сервера
func Configure(knowledge *kb.KnowledgeBase, apiClient *backend.Client, wsHub *websocketpkg.Hub, botDelays bot.Delays) {
	base = knowledge
	api = apiClient
	hub = wsHub
	delays = botDelays
}

func registerSession(s *session) {
	sessionsMu.Lock()
	sessions[s.id] = s
	sessionsMu.Unlock()
}

func getSession(id uuid.UUID) (*session, bool) {
	sessionsMu.RLock()
	s, ok := sessions[id]
	sessionsMu.RUnlock()
	return s, ok
}

func dropSession(s *session) {
	sessionsMu.Lock()
	delete(sessions, s.id)
	sessionsMu.Unlock()

	s.cancel()
	s.engine.Close()
	if s.tmpDir != "" {
		if err := os.RemoveAll(s.tmpDir); err != nil {
			log.Printf("[sessions] не удалось удалить каталог сессии %s: %v", s.id, err)
		}
	}
	log.Printf("[sessions] сессия %s завершена (пользователь %s)", s.id, s.user.Username)
}

// SessionCount возвращает число активных сессий
func SessionCount() int {
	sessionsMu.RLock()
	defer sessionsMu.RUnlock()
	return len(sessions)
}

package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/egor/soportebot/bot"
	"github.com/egor/soportebot/middleware"
	websocketpkg "github.com/egor/soportebot/websocket"
)

// wsUpgrader апгрейдит HTTP→WebSocket с проверкой Origin
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin проверяет, разрешен ли Origin для подключения
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Разрешаем локальные подключения без Origin
		host := r.Host
		if strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:") {
			return true
		}
		return false
	}

	// Получаем разрешенные origins из переменных окружения
	allowedOrigins := []string{}

	// Основной URL фронтенда
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	// Дополнительные разрешенные origins
	if additional := os.Getenv("ADDITIONAL_ALLOWED_ORIGINS"); additional != "" {
		for _, url := range strings.Split(additional, ",") {
			url = strings.TrimSpace(url)
			if url != "" {
				allowedOrigins = append(allowedOrigins, url)
			}
		}
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}

	// Для разработки можно разрешить все origins
	if os.Getenv("ALLOW_ALL_ORIGINS") == "true" {
		log.Printf("ВНИМАНИЕ: Разрешен origin %s (ALLOW_ALL_ORIGINS=true)", origin)
		return true
	}

	log.Printf("Отклонен origin: %s", origin)
	return false
}

// wsRenderer рисует ответы бота в WebSocket-сессию виджета
type wsRenderer struct {
	client *websocketpkg.Client
}

func (r *wsRenderer) Send(msg bot.Message) {
	data, err := websocketpkg.NewMessageEvent(msg)
	if err != nil {
		log.Printf("[ws] ошибка сериализации сообщения: %v", err)
		return
	}
	r.client.Send(data)
}

func (r *wsRenderer) ShowTyping() {
	if data, err := websocketpkg.NewTypingEvent(); err == nil {
		r.client.Send(data)
	}
}

func (r *wsRenderer) SetAttachControl(visible bool) {
	if data, err := websocketpkg.NewAttachControlEvent(visible); err == nil {
		r.client.Send(data)
	}
}

func (r *wsRenderer) Toast(message, kind string) {
	if data, err := websocketpkg.NewToastEvent(message, kind); err == nil {
		r.client.Send(data)
	}
}

// ServeWs открывает сессию виджета: проверяет токен, создаёт движок
// диалога и гоняет входящие события до разрыва соединения
func ServeWs(c *gin.Context) {
	log.Printf("ServeWs: новое соединение от %s, origin: %s",
		c.ClientIP(), c.Request.Header.Get("Origin"))

	// Токен передаётся query-параметром: заголовки при апгрейде
	// из браузера недоступны
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется токен"})
		return
	}

	user, err := middleware.Verify(c.Request.Context(), token)
	if err != nil {
		log.Printf("ServeWs: ошибка проверки токена: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный или устаревший токен"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ServeWs: ошибка апгрейда: %v", err)
		return
	}

	sessionID := uuid.New()
	client := websocketpkg.NewClient(hub, conn, *user, sessionID)
	hub.Register(client)

	tmpDir, err := os.MkdirTemp("", "soportebot-"+sessionID.String())
	if err != nil {
		log.Printf("ServeWs: не удалось создать каталог сессии: %v", err)
		tmpDir = ""
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     sessionID,
		client: client,
		engine: bot.NewEngine(base, api, &wsRenderer{client: client}, *user, sessionID.String(), delays),
		user:   *user,
		tmpDir: tmpDir,
		cancel: cancel,
	}
	registerSession(s)
	defer dropSession(s)

	go client.WritePump()

	if data, err := websocketpkg.NewSessionEvent(sessionID.String()); err == nil {
		client.Send(data)
	}
	s.engine.Start()

	// события обрабатываются последовательно в насосе чтения
	client.ReadPump(func(data []byte) {
		handleInbound(ctx, s, data)
	})
}

// handleInbound разбирает конверт от виджета и передаёт его движку
func handleInbound(ctx context.Context, s *session, data []byte) {
	var env websocketpkg.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("[ws] нечитаемый конверт, сессия %s: %v", s.id, err)
		sendError(s, "formato de mensaje no válido")
		return
	}

	switch env.Type {
	case websocketpkg.EventCommand:
		var cmd bot.Command
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			sendError(s, "comando no válido")
			return
		}
		s.engine.Dispatch(ctx, cmd)

	case websocketpkg.EventText:
		var p websocketpkg.TextPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			sendError(s, "texto no válido")
			return
		}
		s.engine.SubmitText(ctx, p.Text)

	default:
		log.Printf("[ws] неизвестный тип события %q, сессия %s", env.Type, s.id)
		sendError(s, "tipo de evento desconocido: "+env.Type)
	}
}

func sendError(s *session, text string) {
	if data, err := websocketpkg.NewErrorEvent(text); err == nil {
		s.client.Send(data)
	}
}

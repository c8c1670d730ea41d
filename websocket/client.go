package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/egor/soportebot/models"
)

const (
	// время на запись сообщения клиенту
	writeWait = 10 * time.Second

	// время ожидания pong от клиента
	pongWait = 60 * time.Second

	// период отправки ping; должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10

	// максимальный размер входящего сообщения
	maxMessageSize = 64 * 1024
)

// Client - одно WebSocket-соединение виджета
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// буферизованный канал исходящих сообщений
	send chan []byte

	// SessionID - идентификатор сессии диалога
	SessionID uuid.UUID

	// User - аутентифицированный пользователь виджета
	User models.User
}

// NewClient создаёт клиента для принятого соединения
func NewClient(hub *Hub, conn *websocket.Conn, user models.User, sessionID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		SessionID: sessionID,
		User:      user,
	}
}

// Send ставит сообщение в очередь отправки. Возвращает false,
// если буфер переполнен и соединение признано мёртвым.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendJSON маршализует значение и ставит его в очередь отправки
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] ошибка маршализации для сессии %s: %v", c.SessionID, err)
		return
	}
	if !c.Send(data) {
		log.Printf("[ws] буфер отправки переполнен, сессия %s", c.SessionID)
	}
}

// ReadPump читает входящие сообщения и передаёт их обработчику.
// Вызывается в горутине соединения; по выходу снимает регистрацию.
func (c *Client) ReadPump(handle func(data []byte)) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] ошибка чтения, сессия %s: %v", c.SessionID, err)
			}
			break
		}
		handle(data)
	}
}

// WritePump пишет сообщения из канала send в соединение
// и поддерживает его пингами.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// хаб закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

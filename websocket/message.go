package websocket

import (
	"encoding/json"

	"github.com/egor/soportebot/bot"
)

// Типы событий, которые сервер шлёт виджету
const (
	EventSession       = "session"
	EventMessage       = "message"
	EventTyping        = "typing"
	EventAttachControl = "attach_control"
	EventToast         = "toast"
	EventError         = "error"
)

// Типы событий от виджета к серверу
const (
	EventCommand = "command"
	EventText    = "text"
)

// Envelope - общий конверт событий в обе стороны
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newEnvelope(eventType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

// NewSessionEvent сообщает виджету идентификатор его сессии
func NewSessionEvent(sessionID string) ([]byte, error) {
	return newEnvelope(EventSession, map[string]string{"sessionId": sessionID})
}

// NewMessageEvent упаковывает пузырь диалога
func NewMessageEvent(msg bot.Message) ([]byte, error) {
	return newEnvelope(EventMessage, msg)
}

// NewTypingEvent показывает индикатор «бот печатает»
func NewTypingEvent() ([]byte, error) {
	return newEnvelope(EventTyping, nil)
}

// NewAttachControlEvent переключает кнопку прикрепления файлов
func NewAttachControlEvent(visible bool) ([]byte, error) {
	return newEnvelope(EventAttachControl, map[string]bool{"visible": visible})
}

// NewToastEvent показывает всплывающее уведомление в виджете
func NewToastEvent(message, kind string) ([]byte, error) {
	return newEnvelope(EventToast, map[string]string{"message": message, "kind": kind})
}

// NewErrorEvent сообщает виджету об ошибке обработки
func NewErrorEvent(text string) ([]byte, error) {
	return newEnvelope(EventError, map[string]string{"error": text})
}

// TextPayload - тело события "text" от виджета
type TextPayload struct {
	Text string `json:"text"`
}

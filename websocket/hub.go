// Package websocket - транспорт сессий чат-виджета: хаб активных
// соединений, насосы чтения/записи и JSON-конверт сообщений.
package websocket

import (
	"encoding/json"
	"log"
)

// Hub отслеживает активные сессии виджета
type Hub struct {
	// активные клиенты
	clients map[*Client]bool

	// сообщение всем клиентам (служебные объявления)
	broadcast chan []byte

	// регистрация клиента
	register chan *Client

	// отмена регистрации клиента
	unregister chan *Client
}

// NewHub создаёт новый Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run обслуживает хаб; запускается в отдельной горутине
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[hub] сессия подключилась. Всего сессий: %d", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[hub] сессия отключилась. Всего сессий: %d", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Register добавляет клиента в хаб
func (h *Hub) Register(c *Client) { h.register <- c }

// Broadcast отправляет сообщение всем активным сессиям
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[hub] ошибка маршализации сообщения: %v", err)
		return
	}
	h.broadcast <- data
}

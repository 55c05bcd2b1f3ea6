// Package live транслирует события аудита жизненного цикла подключённым
// по websocket наблюдателям (дашборд группы).
package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/court-booking-bot/services"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// Комната, получающая все события аудита.
	RoomAudit = "audit"
)

// RoomForEvent - комната, получающая события одного конкретного события.
func RoomForEvent(eventID int) string {
	return fmt.Sprintf("event:%d", eventID)
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string

	mu     sync.Mutex
	closed bool
}

// Hub раздаёт события аудита по комнатам. Публикация неблокирующая:
// медленный клиент теряет сообщения, а не тормозит движок.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage

	rooms  map[string]map[*Client]bool
	logger *slog.Logger
}

type broadcastMessage struct {
	room string
	data []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 64),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Publish реализует services.AuditSink. Никогда не блокирует: при
// переполнении канала событие отбрасывается.
func (h *Hub) Publish(event services.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal audit event", slog.Any("error", err))
		return
	}
	for _, room := range []string{RoomAudit, RoomForEvent(event.EventID)} {
		select {
		case h.broadcast <- broadcastMessage{room: room, data: data}:
		default:
			h.logger.Warn("audit feed backlog full, dropping event",
				slog.String("room", room), slog.String("type", event.Type))
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.room]; ok {
				if _, okClient := clients[client]; okClient {
					client.close()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.data:
				default:
					// Клиент не успевает читать - отключаем его.
					client.close()
					delete(h.rooms[msg.room], client)
				}
			}
		}
	}
}

// Serve регистрирует уже установленное websocket-соединение в комнате и
// запускает его помпы.
func (h *Hub) Serve(conn *websocket.Conn, room string) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
		room: room,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// readPump читает входящие кадры только ради обработки pong и закрытия.
func (c *Client) readPump() {
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
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

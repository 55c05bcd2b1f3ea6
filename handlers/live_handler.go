package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dosada05/court-booking-bot/live"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Доступ к ленте ограничивается на уровне CORS/сети; сама лента
	// содержит только события аудита без персональных данных.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler подключает websocket-клиентов к ленте аудита.
type LiveHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewLiveHandler(hub *live.Hub, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, logger: logger}
}

// Feed апгрейдит соединение. Параметр ?event=<id> подписывает клиента
// на одно событие, без него - на всю ленту.
func (h *LiveHandler) Feed(w http.ResponseWriter, r *http.Request) {
	room := live.RoomAudit
	if raw := r.URL.Query().Get("event"); raw != "" {
		eventID, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid event id", http.StatusBadRequest)
			return
		}
		room = live.RoomForEvent(eventID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	h.hub.Serve(conn, room)
}

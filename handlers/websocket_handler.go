package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ESD-II/tracker-website/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub *live.Hub
}

func NewWebSocketHandler(hub *live.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs joins a viewer to the live updates room. Every bridge notification
// is pushed down this connection until the client disconnects; clients never
// send anything upstream.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade уже отправил HTTP ошибку клиенту, просто логируем.
		log.Printf("Failed to upgrade live connection: %v", err)
		return
	}

	client := live.NewClient(h.hub, conn, live.RoomTennisUpdates)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

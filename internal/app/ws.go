package app

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"pulse/api/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Participants connect from phones on the facilitator's network; origin
	// checking is handled by the CORS origin configuration, not here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection, assigns it a participant identity and
// starts pumping messages through the service.
func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := room.NewClient(s.hub, conn, s.service.HandleMessage, s.service.Disconnect)
	client.Send(welcomeEvent(client.ID()))
	client.Start()
}

package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/beysion/beytracker/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler streams published events to websocket clients as JSON
// envelopes. Each client gets its own bus subscription; a slow client only
// loses its own events.
type EventsHandler struct {
	bus event.Bus
}

// NewEventsHandler creates an EventsHandler over the given bus.
func NewEventsHandler(bus event.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.bus.Subscribe()
	defer cancel()

	// Drain client messages so pings and closes are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

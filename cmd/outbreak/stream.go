package main

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"outbreak/internal/domain"
)

const streamWriteTimeout = 5 * time.Second

type eventSource interface {
	Register(name string) (<-chan domain.Event, error)
	Unregister(name string)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEventStream pushes every live event to the client as one JSON text
// message. The connection is closed normally once the game's bus closes.
func (a *api) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeError(w, http.StatusServiceUnavailable, errStreamDisabled)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("event stream upgrade error: %v", err)
		return
	}
	defer conn.Close()

	name := "ws-" + uuid.NewString()
	ch, err := a.events.Register(name)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}
	defer a.events.Unregister(name)

	// The client never sends data; reading only notices it going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"),
					time.Now().Add(streamWriteTimeout),
				)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("event stream write error: %v", err)
				return
			}
		case <-gone:
			return
		}
	}
}

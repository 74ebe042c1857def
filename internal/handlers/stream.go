package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return AllowedOrigin(r.Header.Get("Origin"))
	},
}

// AllowedOrigin reports whether a browser origin may call the API: the
// desktop webview and local development only.
func AllowedOrigin(origin string) bool {
	return origin == "" ||
		strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "wails://")
}

// HandleStream handles GET /api/v1/sessions/{id}/stream. It upgrades to a
// websocket, sends the current snapshot, then one message per session change
// until the client goes away or the session is deleted.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		log.Printf("[STREAM] Upgrade failed: session=%s err=%v", s.ID(), err)
		return
	}
	defer conn.Close()

	subID, ch := s.Subscribe()
	defer s.Unsubscribe(subID)
	log.Printf("[STREAM] Client subscribed: session=%s subscriber=%d", s.ID(), subID)

	// Reads are only needed for control frames and to notice the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(s.Snapshot()); err != nil {
		log.Printf("[STREAM] Write failed: session=%s err=%v", s.ID(), err)
		return
	}

	for {
		select {
		case <-done:
			log.Printf("[STREAM] Client disconnected: session=%s subscriber=%d", s.ID(), subID)
			return
		case snap, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("[STREAM] Write failed: session=%s err=%v", s.ID(), err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

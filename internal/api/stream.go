package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from anywhere on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// streamEvents upgrades the connection and relays motion events until the
// client goes away. Each connection gets its own broadcaster subscription, so
// a stalled client sheds its own events without affecting other consumers.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		monitoring.Logf("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	broadcaster := s.engine.Broadcaster()
	id := broadcaster.Subscribe("ws:"+r.RemoteAddr, func(ev engine.MotionEvent) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			monitoring.Counter("ws_write_failures").Add(1)
		}
	})
	monitoring.Logf("websocket client connected: %s", r.RemoteAddr)

	// Drain inbound frames so pings and close frames are processed. A read
	// error means the client disconnected.
	go func() {
		defer func() {
			broadcaster.Unsubscribe(id)
			conn.Close()
			monitoring.Logf("websocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// handleEvents streams hub events over a WebSocket. The optional "type" query
// parameter keeps only events whose type starts with one of its
// comma-separated prefixes, e.g. ?type=permission.,onboarding.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		respondError(w, http.StatusServiceUnavailable, nil)
		return
	}
	prefixes := splitPrefixes(r.URL.Query().Get("type"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = s.cfg.Logger.Warn(logging.CategoryServer, "ws_upgrade_failed", err.Error(), nil)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.cfg.Hub.Subscribe()
	defer unsubscribe()

	telemetry.EventStreamConnections.Inc()
	defer telemetry.EventStreamConnections.Dec()

	// Subscribed before this is sent, so clients may act on it.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(telemetry.Event{Type: "connected", Timestamp: time.Now()}); err != nil {
		return
	}

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if !matches(prefixes, string(event.Type)) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are handled.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func splitPrefixes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func matches(prefixes []string, eventType string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}

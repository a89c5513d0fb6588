// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the embedded chat page.
package server

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed static/index.html
var indexHTML []byte

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebSocketHandler returns the handler that upgrades chat connections and
// hands them to hub. Only GET requests from allowed origins are upgraded.
func NewWebSocketHandler(hub *Hub, cfg Config, policy *OriginPolicy, log *slog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.CheckOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr, cfg)

		// The hub assigns the session id and launches the pump goroutines.
		if !hub.Register(client) {
			client.closeConnection()
		}
	}
}

// NewHealthHandler reports liveness as {"status":"ok","timestamp":...}.
func NewHealthHandler(now func() time.Time, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Timestamp: now().UTC()}); err != nil {
			log.Warn("Error writing health response", "error", err)
		}
	}
}

// IndexHandler serves the browser chat client.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

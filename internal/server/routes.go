// Package server wires HTTP handlers into a ServeMux for the chat
// application via routing helpers.
package server

import (
	"log/slog"
	"net/http"
	"time"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes:
// the chat page, the health check and the WebSocket endpoint.
func SetupRoutes(hub *Hub, cfg Config, log *slog.Logger) *http.ServeMux {
	policy := NewOriginPolicy(cfg.AllowedOrigins, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/", IndexHandler)
	mux.HandleFunc("/health", NewHealthHandler(time.Now, log))
	mux.HandleFunc("/ws", NewWebSocketHandler(hub, cfg, policy, log))
	return mux
}

// Package testhelpers provides common utilities for the chat server
// integration tests: an in-process server stack, websocket dialing, and
// event-frame assertions.
package testhelpers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/gochat-presence/internal/server"
)

// TestOrigin is the browser origin the test clients present.
const TestOrigin = "http://localhost:3000"

// DefaultTimeout bounds every read in the helpers.
const DefaultTimeout = 2 * time.Second

// Frame is a decoded server event.
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Stack is a running hub behind an httptest server.
type Stack struct {
	Hub    *server.Hub
	Server *httptest.Server
	WSURL  string
}

// NewStack starts a hub and HTTP server configured from the defaults and
// customize. Both are torn down when the test ends.
func NewStack(t *testing.T, customize func(cfg *server.Config)) *Stack {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	if customize != nil {
		customize(cfg)
	}

	logger := logs.GetLoggerFromLevel(slog.LevelError)
	hub := server.NewHub(logger)
	server.StartHub(hub)

	ts := httptest.NewServer(server.SetupRoutes(hub, *cfg, logger))
	t.Cleanup(func() {
		_ = hub.Shutdown(DefaultTimeout)
		ts.Close()
	})

	return &Stack{
		Hub:    hub,
		Server: ts,
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// ConnectWebSocket dials url presenting origin.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Connect dials the stack and consumes the private welcome and user count.
func (s *Stack) Connect(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, _, err := ConnectWebSocket(s.WSURL, TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ExpectEvent(t, conn, "welcome")
	ExpectEvent(t, conn, "user-count")
	return conn
}

// ConnectAndJoin connects, joins as username and consumes the user count
// that follows the join.
func (s *Stack) ConnectAndJoin(t *testing.T, username string) *websocket.Conn {
	t.Helper()

	conn := s.Connect(t)
	Emit(t, conn, "join", map[string]string{"username": username, "avatar": username[:1], "color": "#123456"})
	ExpectEvent(t, conn, "user-count")
	return conn
}

// ConnectAndJoinMany joins n participants named User1..Usern in order.
func (s *Stack) ConnectAndJoinMany(t *testing.T, n int) []*websocket.Conn {
	t.Helper()

	conns := make([]*websocket.Conn, 0, n)
	for i := 1; i <= n; i++ {
		conns = append(conns, s.ConnectAndJoin(t, fmt.Sprintf("User%d", i)))
	}
	return conns
}

// Emit sends one client event.
func Emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("Failed to emit %s: %v", event, err)
	}
}

// ReadFrame reads the next server event within timeout.
func ReadFrame(conn *websocket.Conn, timeout time.Duration) (Frame, error) {
	var frame Frame
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return frame, err
	}
	err := conn.ReadJSON(&frame)
	return frame, err
}

// ExpectEvent reads the next frame and fails unless it is event.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()

	frame, err := ReadFrame(conn, DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected %q, read failed: %v", event, err)
	}
	if frame.Event != event {
		t.Fatalf("Expected %q, got %q (%v)", event, frame.Event, frame.Data)
	}
	return frame
}

// ExpectNoFrame fails if any frame arrives within timeout.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	frame, err := ReadFrame(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no frame, got %q (%v)", frame.Event, frame.Data)
	}
}

// CountEvents counts frames named event until no frame arrives for quiet.
func CountEvents(conn *websocket.Conn, event string, quiet time.Duration) int {
	count := 0
	for {
		frame, err := ReadFrame(conn, quiet)
		if err != nil {
			return count
		}
		if frame.Event == event {
			count++
		}
	}
}

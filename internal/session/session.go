// Package session holds the server-side state of every live chat connection
// and the Registry that owns it.
package session

import "time"

// ID identifies one connection for the lifetime of the process.
type ID string

// Status is the lifecycle position of a session.
type Status int

const (
	StatusConnecting Status = iota
	StatusJoined
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusJoined:
		return "joined"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Profile is the display identity a client announces with its join event.
// It is immutable once the session has joined.
type Profile struct {
	Username string
	Avatar   string
	Color    string
}

//go:generate mockgen -destination=../mocks/mock_outbound.go -package=mocks github.com/Tyrowin/gochat-presence/internal/session Outbound

// Outbound is the handle used to push encoded events to one client.
//
// Enqueue must not block: implementations return ErrBufferFull when the
// client cannot keep up and ErrConnClosed once the connection is gone.
// Close schedules the connection for teardown and may be called repeatedly.
type Outbound interface {
	Enqueue(payload []byte) error
	Close()
	RemoteAddr() string
}

// Session is a point-in-time copy of one connection's state. Callers get
// copies from the Registry and never share its internal record.
type Session struct {
	ID          ID
	Profile     Profile
	Status      Status
	Conn        Outbound
	ConnectedAt time.Time
	JoinedAt    time.Time
}

// Joined reports whether the session completed the join handshake.
func (s Session) Joined() bool {
	return s.Status == StatusJoined
}

// Package protocol defines the events exchanged over a chat connection and
// the JSON frames that carry them.
package protocol

import (
	"time"

	"github.com/Tyrowin/gochat-presence/internal/session"
)

// EventName is the name carried in the "event" field of a frame.
type EventName string

// Client to server events.
const (
	EventJoin        EventName = "join"
	EventChatMessage EventName = "chat-message"
	EventTypingStart EventName = "typing-start"
	EventTypingStop  EventName = "typing-stop"
)

// Server to client events. chat-message is shared with the inbound side.
const (
	EventWelcome        EventName = "welcome"
	EventUserCount      EventName = "user-count"
	EventPresenceJoined EventName = "presence-joined"
	EventPresenceLeft   EventName = "presence-left"
	EventUserTyping     EventName = "user-typing"
	EventUserStopTyping EventName = "user-stop-typing"
)

// Kind classifies a server-originated envelope.
type Kind int

const (
	KindChat Kind = iota
	KindTypingStart
	KindTypingStop
	KindPresenceJoined
	KindPresenceLeft
	KindUserCount
	KindWelcome
)

var kindEvents = map[Kind]EventName{
	KindChat:           EventChatMessage,
	KindTypingStart:    EventUserTyping,
	KindTypingStop:     EventUserStopTyping,
	KindPresenceJoined: EventPresenceJoined,
	KindPresenceLeft:   EventPresenceLeft,
	KindUserCount:      EventUserCount,
	KindWelcome:        EventWelcome,
}

// Event returns the wire name used for the kind.
func (k Kind) Event() EventName {
	return kindEvents[k]
}

func (k Kind) String() string {
	if name, ok := kindEvents[k]; ok {
		return string(name)
	}
	return "unknown"
}

// ScopeMode selects how recipients are resolved from a snapshot.
type ScopeMode int

const (
	ScopeModeAll ScopeMode = iota
	ScopeModeAllExcept
	ScopeModeOnly
)

// Scope is the recipient policy of one envelope.
type Scope struct {
	Mode   ScopeMode
	Sender session.ID
}

// ScopeAll targets every session in the snapshot.
func ScopeAll() Scope { return Scope{Mode: ScopeModeAll} }

// ScopeAllExcept targets every session but sender.
func ScopeAllExcept(sender session.ID) Scope {
	return Scope{Mode: ScopeModeAllExcept, Sender: sender}
}

// ScopeOnly targets a single session; used for private server notices.
func ScopeOnly(target session.ID) Scope {
	return Scope{Mode: ScopeModeOnly, Sender: target}
}

func (s Scope) String() string {
	switch s.Mode {
	case ScopeModeAllExcept:
		return "all-except(" + string(s.Sender) + ")"
	case ScopeModeOnly:
		return "only(" + string(s.Sender) + ")"
	default:
		return "all"
	}
}

// Envelope is one server-originated event ready for fan-out.
type Envelope struct {
	Kind      Kind
	Payload   any
	Timestamp time.Time
	Scope     Scope
}

// WelcomePayload greets a freshly connected client.
type WelcomePayload struct {
	Message string `json:"message"`
}

// UserCountPayload carries the live connection count.
type UserCountPayload struct {
	Count int `json:"count"`
}

// PresencePayload announces a join or a departure.
type PresencePayload struct {
	Message   string `json:"message"`
	UserCount int    `json:"userCount"`
}

// ChatPayload is a chat message as broadcast by the server. Identity fields
// always come from the sender's stored profile.
type ChatPayload struct {
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Color     string    `json:"color"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload identifies who started or stopped typing.
type TypingPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

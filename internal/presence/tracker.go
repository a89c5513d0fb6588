// Package presence translates registry changes into the notifications other
// participants see. It performs no I/O and holds no state besides its clock.
package presence

import (
	"fmt"
	"time"

	"github.com/Tyrowin/gochat-presence/internal/protocol"
	"github.com/Tyrowin/gochat-presence/internal/session"
)

// WelcomeMessage is sent privately to every new connection.
const WelcomeMessage = "Welcome to the chat!"

// Tracker builds presence envelopes.
type Tracker struct {
	now func() time.Time
}

// NewTracker returns a Tracker stamping envelopes with now. A nil clock
// defaults to time.Now.
func NewTracker(now func() time.Time) Tracker {
	if now == nil {
		now = time.Now
	}
	return Tracker{now: now}
}

// Welcome returns the private greeting and user count for a new connection.
func (t Tracker) Welcome(id session.ID, count int) []protocol.Envelope {
	ts := t.now()
	return []protocol.Envelope{
		{
			Kind:      protocol.KindWelcome,
			Payload:   protocol.WelcomePayload{Message: WelcomeMessage},
			Timestamp: ts,
			Scope:     protocol.ScopeOnly(id),
		},
		{
			Kind:      protocol.KindUserCount,
			Payload:   protocol.UserCountPayload{Count: count},
			Timestamp: ts,
			Scope:     protocol.ScopeOnly(id),
		},
	}
}

// Joined returns presence-joined for everyone but s, then the user count for all.
func (t Tracker) Joined(s session.Session, count int) []protocol.Envelope {
	return t.sequence(protocol.KindPresenceJoined, s, fmt.Sprintf("%s joined the chat", s.Profile.Username), count)
}

// Left returns presence-left for everyone but s, then the user count for all.
// s is the departed session with its last known profile.
func (t Tracker) Left(s session.Session, count int) []protocol.Envelope {
	return t.sequence(protocol.KindPresenceLeft, s, fmt.Sprintf("%s left the chat", s.Profile.Username), count)
}

func (t Tracker) sequence(kind protocol.Kind, s session.Session, message string, count int) []protocol.Envelope {
	ts := t.now()
	return []protocol.Envelope{
		{
			Kind:      kind,
			Payload:   protocol.PresencePayload{Message: message, UserCount: count},
			Timestamp: ts,
			Scope:     protocol.ScopeAllExcept(s.ID),
		},
		{
			Kind:      protocol.KindUserCount,
			Payload:   protocol.UserCountPayload{Count: count},
			Timestamp: ts,
			Scope:     protocol.ScopeAll(),
		},
	}
}

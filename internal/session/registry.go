package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const maxIDAttempts = 8

// Snapshot is a consistent copy of the registry taken under a single lock.
type Snapshot struct {
	Count    int
	Sessions []Session
}

// Has reports whether the snapshot contains the given session.
func (s Snapshot) Has(id ID) bool {
	return lo.ContainsBy(s.Sessions, func(sess Session) bool { return sess.ID == id })
}

// Registry maps connection ids to session state. It is the only shared
// mutable state of the hub: every read and write goes through mu, and the
// live count always equals len(sessions).
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]Session
	newID    func() (uuid.UUID, error)
	now      func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDSource replaces the UUID generator used for new session ids.
func WithIDSource(fn func() (uuid.UUID, error)) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithClock replaces the clock used to stamp ConnectedAt and JoinedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[ID]Session),
		newID:    uuid.NewRandom,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register allocates a fresh id for conn and stores a connecting session.
func (r *Registry) Register(conn Outbound) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		raw, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w: %v", ErrResourceExhausted, err)
		}
		id := ID(raw.String())
		if _, taken := r.sessions[id]; taken {
			continue
		}
		r.sessions[id] = Session{
			ID:          id,
			Status:      StatusConnecting,
			Conn:        conn,
			ConnectedAt: r.now(),
		}
		return id, nil
	}
	return "", fmt.Errorf("no unique id after %d attempts: %w", maxIDAttempts, ErrResourceExhausted)
}

// SetProfile moves a connecting session to joined and stores its profile.
func (r *Registry) SetProfile(id ID, profile Profile) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Status != StatusConnecting {
		return Session{}, fmt.Errorf("join while %s: %w", sess.Status, ErrInvalidState)
	}

	sess.Profile = profile
	sess.Status = StatusJoined
	sess.JoinedAt = r.now()
	r.sessions[id] = sess
	return sess, nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id ID) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Remove deletes the session and returns its last known state marked closed,
// along with the status it had before removal. A second Remove of the same
// id returns ErrNotFound and leaves the live count untouched.
func (r *Registry) Remove(id ID) (Removed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Removed{}, ErrNotFound
	}
	delete(r.sessions, id)

	previous := sess.Status
	sess.Status = StatusClosed
	return Removed{Session: sess, Previous: previous, Count: len(r.sessions)}, nil
}

// Removed describes a session that has just left the registry.
type Removed struct {
	Session  Session
	Previous Status
	// Count is the live count right after the removal.
	Count int
}

// WasJoined reports whether the removed session had completed its join.
func (r Removed) WasJoined() bool {
	return r.Previous == StatusJoined
}

// LiveCount returns the number of connecting and joined sessions.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AllJoined returns a snapshot of the joined sessions.
func (r *Registry) AllJoined() []Session {
	return r.JoinedSnapshot().Sessions
}

// JoinedSnapshot returns the joined sessions together with the live count,
// both read under the same lock.
func (r *Registry) JoinedSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := lo.Filter(lo.Values(r.sessions), func(sess Session, _ int) bool {
		return sess.Status == StatusJoined
	})
	return Snapshot{Count: len(r.sessions), Sessions: joined}
}

// Snapshot returns every live session, joined or not, with the live count.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{Count: len(r.sessions), Sessions: lo.Values(r.sessions)}
}

// Package server coordinates session lifecycle, presence notifications and
// message fan-out for the chat via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gochat-presence/internal/broadcast"
	"github.com/Tyrowin/gochat-presence/internal/presence"
	"github.com/Tyrowin/gochat-presence/internal/protocol"
	"github.com/Tyrowin/gochat-presence/internal/session"
)

// Hub owns the session registry and drives each connection through
// connecting -> joined -> closed. Every event handler is safe to call from
// any connection goroutine; the registry serializes state changes and
// fan-out always happens on a snapshot, outside the registry lock.
type Hub struct {
	registry  *session.Registry
	tracker   presence.Tracker
	router    *broadcast.Router
	validator *protocol.Validator
	log       *slog.Logger
	now       func() time.Time

	register   chan *Client
	unregister chan *Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	startOnce  sync.Once
}

// HubOption customises a Hub.
type HubOption func(*hubOptions)

type hubOptions struct {
	now      func() time.Time
	registry []session.Option
}

// WithClock sets the clock used for server timestamps.
func WithClock(now func() time.Time) HubOption {
	return func(o *hubOptions) {
		o.now = now
		o.registry = append(o.registry, session.WithClock(now))
	}
}

// WithRegistryOptions forwards options to the underlying session registry.
func WithRegistryOptions(opts ...session.Option) HubOption {
	return func(o *hubOptions) { o.registry = append(o.registry, opts...) }
}

// NewHub creates a Hub ready to accept connections. Call Run in its own
// goroutine before handing websocket clients to it.
func NewHub(log *slog.Logger, opts ...HubOption) *Hub {
	o := hubOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   session.NewRegistry(o.registry...),
		tracker:    presence.NewTracker(o.now),
		router:     broadcast.NewRouter(log),
		validator:  protocol.NewValidator(),
		log:        log,
		now:        o.now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// LiveCount returns the number of connecting and joined sessions.
func (h *Hub) LiveCount() int {
	return h.registry.LiveCount()
}

// Session returns a copy of the session state for id.
func (h *Hub) Session(id session.ID) (session.Session, error) {
	return h.registry.Get(id)
}

// Connect registers a new connection and privately sends it the welcome
// notice and the current user count.
func (h *Hub) Connect(conn session.Outbound) (session.ID, error) {
	id, err := h.registry.Register(conn)
	if err != nil {
		h.log.Error("Rejecting connection", "remote", conn.RemoteAddr(), "error", err)
		return "", err
	}

	snap := h.registry.Snapshot()
	h.log.Info("Session connected", "session", id, "remote", conn.RemoteAddr(), "live", snap.Count)
	h.deliver(h.tracker.Welcome(id, snap.Count), snap)
	return id, nil
}

// Join stores the profile of a connecting session and announces it. The
// session state is checked before the payload, so an unknown or joined
// session reports ErrNotFound or ErrInvalidState whatever it sent.
func (h *Hub) Join(id session.ID, req protocol.JoinRequest) error {
	current, err := h.registry.Get(id)
	if err != nil {
		return err
	}
	if current.Status != session.StatusConnecting {
		return fmt.Errorf("join while %s: %w", current.Status, session.ErrInvalidState)
	}

	req, err = h.validator.Join(req)
	if err != nil {
		return err
	}

	sess, err := h.registry.SetProfile(id, session.Profile{
		Username: req.Username,
		Avatar:   req.Avatar,
		Color:    req.Color,
	})
	if err != nil {
		return err
	}

	snap := h.registry.Snapshot()
	h.log.Info("Session joined", "session", id, "username", sess.Profile.Username, "live", snap.Count)
	h.deliver(h.tracker.Joined(sess, snap.Count), snap)
	return nil
}

// Chat broadcasts a message from a joined session to every joined session,
// sender included. Identity fields come from the stored profile.
func (h *Hub) Chat(id session.ID, req protocol.ChatRequest) error {
	sess, err := h.joinedSession(id)
	if err != nil {
		return err
	}
	req, err = h.validator.Chat(req)
	if err != nil {
		return err
	}

	ts := h.now()
	env := protocol.Envelope{
		Kind: protocol.KindChat,
		Payload: protocol.ChatPayload{
			Username:  sess.Profile.Username,
			Avatar:    sess.Profile.Avatar,
			Color:     sess.Profile.Color,
			Message:   req.Message,
			Timestamp: ts,
		},
		Timestamp: ts,
		Scope:     protocol.ScopeAll(),
	}
	h.deliver([]protocol.Envelope{env}, h.registry.Snapshot())
	return nil
}

// Typing relays a typing-start (started) or typing-stop signal to every
// joined session except the typist.
func (h *Hub) Typing(id session.ID, started bool) error {
	sess, err := h.joinedSession(id)
	if err != nil {
		return err
	}

	kind := protocol.KindTypingStop
	if started {
		kind = protocol.KindTypingStart
	}
	env := protocol.Envelope{
		Kind:      kind,
		Payload:   protocol.TypingPayload{Username: sess.Profile.Username, Avatar: sess.Profile.Avatar},
		Timestamp: h.now(),
		Scope:     protocol.ScopeAllExcept(id),
	}
	h.deliver([]protocol.Envelope{env}, h.registry.Snapshot())
	return nil
}

// Disconnect removes the session. A session that had joined is announced as
// departed; one that never joined leaves silently.
func (h *Hub) Disconnect(id session.ID) error {
	removed, err := h.registry.Remove(id)
	if err != nil {
		return err
	}

	h.log.Info("Session disconnected", "session", id, "was", removed.Previous, "live", removed.Count)
	if !removed.WasJoined() {
		return nil
	}

	snap := h.registry.Snapshot()
	h.deliver(h.tracker.Left(removed.Session, snap.Count), snap)
	return nil
}

// HandleFrame decodes one client frame and dispatches it. Any error means
// the frame was dropped; callers only log it.
func (h *Hub) HandleFrame(id session.ID, raw []byte) error {
	in, err := protocol.Decode(raw)
	if err != nil {
		return err
	}
	return h.Dispatch(id, in)
}

// Dispatch runs a decoded client event. A panic while handling is recovered
// so a single connection can never take the hub down.
func (h *Hub) Dispatch(id session.ID, in protocol.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic while handling frame", "session", id, "event", in.Event, "panic", r)
			err = fmt.Errorf("handle frame: %v", r)
		}
	}()

	switch in.Event {
	case protocol.EventJoin:
		return h.Join(id, *in.Join)
	case protocol.EventChatMessage:
		return h.Chat(id, *in.Chat)
	case protocol.EventTypingStart:
		return h.Typing(id, true)
	case protocol.EventTypingStop:
		return h.Typing(id, false)
	default:
		return protocol.ErrUnknownEvent
	}
}

func (h *Hub) joinedSession(id session.ID) (session.Session, error) {
	sess, err := h.registry.Get(id)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.Joined() {
		return session.Session{}, fmt.Errorf("event while %s: %w", sess.Status, session.ErrInvalidState)
	}
	return sess, nil
}

// deliver fans envs out in order and schedules teardown of every recipient
// that could not take them.
func (h *Hub) deliver(envs []protocol.Envelope, snap session.Snapshot) {
	report := h.router.SendAll(envs, snap)
	h.evict(report.Failed, snap)
}

func (h *Hub) evict(ids []session.ID, snap session.Snapshot) {
	for _, id := range ids {
		for _, sess := range snap.Sessions {
			if sess.ID != id || sess.Conn == nil {
				continue
			}
			h.log.Warn("Scheduling teardown after failed delivery", "session", id, "remote", sess.Conn.RemoteAddr())
			sess.Conn.Close()
		}
	}
}

// Run starts the hub's lifecycle loop: it attaches registered websocket
// clients, detaches unregistered ones, and closes every connection when the
// hub shuts down. It blocks until Shutdown is called and does nothing once
// the hub has been shut down.
func (h *Hub) Run() {
	h.startOnce.Do(func() {
		defer close(h.done)

		for {
			select {
			case <-h.ctx.Done():
				h.shutdownClients()
				return

			case client := <-h.register:
				if client == nil {
					h.log.Warn("Received nil client registration; skipping")
					continue
				}
				h.attach(client)

			case client := <-h.unregister:
				h.detach(client)
			}
		}
	})
}

// Register hands a websocket client to the running hub. It returns false when
// the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// leave is called once by a client's read pump when its connection ends.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		h.detach(client)
	}
}

func (h *Hub) attach(client *Client) {
	id, err := h.Connect(client)
	if err != nil {
		client.closeSend()
		client.closeConnection()
		return
	}
	client.id = id

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) detach(client *Client) {
	if err := h.Disconnect(client.id); err != nil && !errors.Is(err, session.ErrNotFound) {
		h.log.Error("Error disconnecting session", "session", client.id, "error", err)
	}
	client.closeSend()
}

// shutdownClients closes every live connection; their read pumps then detach.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	snap := h.registry.Snapshot()
	for _, sess := range snap.Sessions {
		if sess.Conn != nil {
			sess.Conn.Close()
		}
	}

	h.log.Info("Closed client connections", "count", len(snap.Sessions))
}

// Shutdown stops the hub and waits for every client goroutine to finish, or
// for timeout to elapse. A hub whose Run never started stops at once, and a
// later Run returns immediately.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")
	h.cancel()
	h.startOnce.Do(func() { close(h.done) })

	deadline := time.After(timeout)
	select {
	case <-h.done:
	case <-deadline:
		h.log.Warn("Hub shutdown timeout reached before the run loop stopped")
		return context.DeadlineExceeded
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-deadline:
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

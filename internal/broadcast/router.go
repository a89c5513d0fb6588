// Package broadcast fans envelopes out to the sessions of a registry
// snapshot. Delivery is best effort and isolated per recipient.
package broadcast

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-presence/internal/protocol"
	"github.com/Tyrowin/gochat-presence/internal/session"
)

// Report summarises one Send.
type Report struct {
	Targeted  int
	Delivered int
	// Failed lists recipients whose outbound queue rejected the envelope.
	// They should be torn down by the caller.
	Failed []session.ID
}

// Router pushes envelopes onto session outbound queues. It never holds the
// registry lock: callers pass a snapshot taken beforehand.
type Router struct {
	log *slog.Logger
}

// NewRouter creates a Router logging delivery failures to log.
func NewRouter(log *slog.Logger) *Router {
	return &Router{log: log}
}

// Targets resolves the recipients of env within snap. Chat, typing and
// presence envelopes only reach joined sessions; user counts and private
// notices reach any live session.
func (r *Router) Targets(env protocol.Envelope, snap session.Snapshot) []session.Session {
	audience := lo.Filter(snap.Sessions, func(s session.Session, _ int) bool {
		return reachable(env.Kind, s)
	})

	switch env.Scope.Mode {
	case protocol.ScopeModeAllExcept:
		return lo.Reject(audience, func(s session.Session, _ int) bool {
			return s.ID == env.Scope.Sender
		})
	case protocol.ScopeModeOnly:
		return lo.Filter(audience, func(s session.Session, _ int) bool {
			return s.ID == env.Scope.Sender
		})
	default:
		return audience
	}
}

func reachable(kind protocol.Kind, s session.Session) bool {
	switch kind {
	case protocol.KindUserCount, protocol.KindWelcome:
		return s.Status != session.StatusClosed
	default:
		return s.Joined()
	}
}

// Send encodes env once and enqueues it for every recipient resolved from
// its scope. A recipient that cannot take the envelope is logged and listed
// in the report; the remaining recipients are still served.
func (r *Router) Send(env protocol.Envelope, snap session.Snapshot) Report {
	targets := r.Targets(env, snap)
	report := Report{Targeted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	payload, err := protocol.Encode(env)
	if err != nil {
		r.log.Error("Dropping envelope that cannot be encoded", "kind", env.Kind, "error", err)
		return report
	}

	r.log.Debug("Broadcasting envelope", "kind", env.Kind, "scope", env.Scope, "recipients", len(targets))

	for _, target := range targets {
		if target.Conn == nil {
			report.Failed = append(report.Failed, target.ID)
			continue
		}
		if err := target.Conn.Enqueue(payload); err != nil {
			r.log.Warn("Delivery failed",
				"session", target.ID,
				"remote", target.Conn.RemoteAddr(),
				"kind", env.Kind,
				"error", err)
			report.Failed = append(report.Failed, target.ID)
			continue
		}
		report.Delivered++
	}
	return report
}

// SendAll sends envs in order against the same snapshot and merges the
// reports. Failed ids appear once.
func (r *Router) SendAll(envs []protocol.Envelope, snap session.Snapshot) Report {
	var total Report
	for _, env := range envs {
		rep := r.Send(env, snap)
		total.Targeted += rep.Targeted
		total.Delivered += rep.Delivered
		total.Failed = append(total.Failed, rep.Failed...)
	}
	total.Failed = lo.Uniq(total.Failed)
	return total
}

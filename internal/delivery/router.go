// Package delivery decides whether an event reaches its target live.
package delivery

import (
	"io"
	"log/slog"

	"github.com/sudo-init-do/fieldhub/internal/presence"
)

// Emitter writes an event to one live connection without blocking.
type Emitter interface {
	Emit(connectionID, event string, payload any) error
}

// Directory resolves usernames to live connections.
type Directory interface {
	ConnectionIDFor(username string) (string, bool)
	Snapshot(match func(presence.Entry) bool) []presence.Entry
}

// Result reports the outcome of a single delivery attempt.
type Result struct {
	Delivered bool
}

// Router sends events to online users. It never retries and never touches
// durable storage; an undelivered result is the caller's cue to fall back.
type Router struct {
	dir     Directory
	emitter Emitter
	logger  *slog.Logger
}

func NewRouter(dir Directory, emitter Emitter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{dir: dir, emitter: emitter, logger: logger}
}

// Deliver emits event to target's current connection.
func (r *Router) Deliver(target, event string, payload any) Result {
	connID, ok := r.dir.ConnectionIDFor(target)
	if !ok {
		r.logger.Debug("delivery target offline", "target", target, "event", event)
		return Result{Delivered: false}
	}
	if err := r.emitter.Emit(connID, event, payload); err != nil {
		r.logger.Warn("live emit failed", "target", target, "event", event, "connection_id", connID, "error", err)
		return Result{Delivered: false}
	}
	return Result{Delivered: true}
}

// Broadcast emits event to every online user matching match and returns how
// many emits succeeded.
func (r *Router) Broadcast(match func(presence.Entry) bool, event string, payload any) int {
	sent := 0
	for _, e := range r.dir.Snapshot(match) {
		if err := r.emitter.Emit(e.ConnectionID, event, payload); err != nil {
			r.logger.Warn("broadcast emit failed", "target", e.Username, "event", event, "error", err)
			continue
		}
		sent++
	}
	return sent
}

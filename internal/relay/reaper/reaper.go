// Package reaper evicts sessions whose transport has died or whose client
// has gone silent past the inactivity threshold.
package reaper

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parkline/relay/internal/relay/session"
)

// Disconnector runs the abrupt-disconnect cleanup path for a session. The
// router implements it.
type Disconnector interface {
	Disconnect(sess *session.Session)
}

// Reaper periodically sweeps the registry and evicts dead or idle sessions.
// Eviction emits the same departure notification a graceful leave would,
// via the Disconnector.
type Reaper struct {
	registry  *session.Registry
	cleanup   Disconnector
	logger    *zap.Logger
	interval  time.Duration
	idleAfter time.Duration
	now       func() time.Time

	quit chan struct{}
	once sync.Once
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) { r.now = now }
}

// New creates a Reaper.
//
// Precondition: registry, cleanup, and logger must be non-nil; interval and
// idleAfter must be positive.
func New(registry *session.Registry, cleanup Disconnector, interval, idleAfter time.Duration, logger *zap.Logger, opts ...Option) *Reaper {
	r := &Reaper{
		registry:  registry,
		cleanup:   cleanup,
		logger:    logger,
		interval:  interval,
		idleAfter: idleAfter,
		now:       time.Now,
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the sweep loop until Stop is called. It blocks, satisfying
// server.Service.
func (r *Reaper) Start() error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.quit:
			return nil
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.quit) })
}

// Sweep visits a snapshot of the registry taken at sweep start and evicts
// every session whose transport is closed or whose last activity is older
// than the idle threshold. Removals mid-sweep are safe because the snapshot
// is stable.
func (r *Reaper) Sweep() {
	now := r.now()
	reaped := 0

	for _, sess := range r.registry.All() {
		idle := now.Sub(sess.LastActivity())
		switch {
		case !sess.Transport.IsOpen():
			r.logger.Debug("reaping dead connection",
				zap.String("player_id", sess.ID),
			)
		case idle > r.idleAfter:
			r.logger.Debug("reaping idle connection",
				zap.String("player_id", sess.ID),
				zap.Duration("idle", idle),
			)
		default:
			continue
		}
		r.cleanup.Disconnect(sess)
		reaped++
	}

	if reaped > 0 {
		r.logger.Info("liveness sweep complete",
			zap.Int("reaped", reaped),
			zap.Int("remaining", r.registry.Len()),
		)
	}
}

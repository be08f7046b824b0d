// Package stats periodically summarizes registry population for
// observability.
package stats

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parkline/relay/internal/relay/session"
	"github.com/parkline/relay/internal/relay/world"
)

// Snapshot is one read-only summary of registry contents.
type Snapshot struct {
	// Total is the number of connected sessions, joined or not.
	Total int
	// Active is the number of joined sessions.
	Active int
	// ByLocation maps location display name to its active session count.
	// Locations with no active sessions are omitted.
	ByLocation map[string]int
}

// Reporter periodically logs population counts. It never mutates registry
// state.
type Reporter struct {
	registry *session.Registry
	catalog  *world.Catalog
	logger   *zap.Logger
	interval time.Duration

	quit chan struct{}
	once sync.Once
}

// New creates a Reporter.
//
// Precondition: registry, catalog, and logger must be non-nil; interval must
// be positive.
func New(registry *session.Registry, catalog *world.Catalog, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Start runs the reporting loop until Stop is called. It blocks, satisfying
// server.Service.
func (r *Reporter) Start() error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Report()
		case <-r.quit:
			return nil
		}
	}
}

// Stop terminates the reporting loop. Safe to call more than once.
func (r *Reporter) Stop() {
	r.once.Do(func() { close(r.quit) })
}

// Report emits one population record.
func (r *Reporter) Report() {
	snap := r.Collect()
	r.logger.Info("presence stats",
		zap.Int("sessions", snap.Total),
		zap.Int("active", snap.Active),
		zap.Any("locations", snap.ByLocation),
	)
}

// Collect builds a Snapshot from the current registry contents. An empty
// registry yields zero counts and an empty location map.
func (r *Reporter) Collect() Snapshot {
	snap := Snapshot{ByLocation: make(map[string]int)}

	for _, sess := range r.registry.All() {
		snap.Total++
		if !sess.Active() {
			continue
		}
		snap.Active++
		snap.ByLocation[r.catalog.DisplayName(sess.Location())]++
	}

	return snap
}

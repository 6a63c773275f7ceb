package desired

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelswap/internal/manager"
)

// DefaultInterval is how often the watcher reads the record.
const DefaultInterval = 2 * time.Second

// Coordinator is the part of the swap coordinator the watcher drives.
type Coordinator interface {
	RequestUpdate(artifactID string) (string, error)
	Snapshot() manager.Snapshot
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Watcher polls a Store and requests an update whenever the desired artifact
// differs from the one it last acted on. The last-acted value only advances
// when a request is accepted, so a rejection is retried on a later tick.
type Watcher struct {
	store    Store
	coord    Coordinator
	interval time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	last string
}

func NewWatcher(store Store, coord Coordinator, cfg WatcherConfig) *Watcher {
	w := &Watcher{store: store, coord: coord, interval: cfg.Interval, log: zerolog.Nop()}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if cfg.Logger != nil {
		w.log = cfg.Logger.With().Str("component", "desired_watcher").Logger()
	}
	return w
}

// LastActed returns the desired artifact the watcher last acted on.
func (w *Watcher) LastActed() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run checks the record once immediately, then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("desired-state watcher started")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		w.Check(ctx)
		select {
		case <-ctx.Done():
			w.log.Info().Msg("desired-state watcher stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Check performs one poll. It reports whether an update was requested.
func (w *Watcher) Check(ctx context.Context) bool {
	ds, ok := w.store.Read(ctx)
	if !ok {
		return false
	}
	desired := ds.DesiredArtifactID

	w.mu.Lock()
	defer w.mu.Unlock()
	if desired == w.last {
		return false
	}
	snap := w.coord.Snapshot()
	if !snap.Updating && snap.Ready && snap.Current.ArtifactID == desired {
		w.log.Debug().Str("artifact", desired).Msg("desired artifact already served")
		w.last = desired
		return false
	}
	w.log.Info().Str("artifact", desired).Str("previous", w.last).Msg("desired artifact changed")
	if _, err := w.coord.RequestUpdate(desired); err != nil {
		if manager.IsAlreadyUpdating(err) {
			w.log.Debug().Str("artifact", desired).Msg("coordinator busy; retrying next tick")
		} else {
			w.log.Warn().Err(err).Str("artifact", desired).Msg("update request failed")
		}
		return false
	}
	w.last = desired
	return true
}

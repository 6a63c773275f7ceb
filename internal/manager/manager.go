package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"modelswap/internal/engine"
)

type Manager struct {
	// active is read without locks on the serve path.
	active atomic.Pointer[slot]

	mu        sync.RWMutex
	tracker   *VersionTracker
	updating  bool
	lastError string
	closed    bool
	started   bool
	// pending holds replaced handles waiting for their release grace.
	pending map[*time.Timer]engine.Handle

	loader       engine.Loader
	initial      string
	syncStart    bool
	releaseGrace time.Duration
	startTime    time.Time
	log          zerolog.Logger
	pub          EventPublisher

	// loads tracks background load goroutines.
	loads sync.WaitGroup
}

// New constructs a Manager with package defaults.
func New(loader engine.Loader, initialArtifact string) *Manager {
	return NewWithConfig(ManagerConfig{Loader: loader, InitialArtifact: initialArtifact})
}

// SetEventPublisher replaces the event sink. Nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.pub = noopPublisher{}
		return
	}
	m.pub = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.pub
	m.mu.RUnlock()
	p.Publish(e)
}

// Start loads the initial artifact. The initial load counts as the in-flight
// update, so RequestUpdate is rejected until it finishes. With
// SyncInitialLoad Start blocks and returns the load error; otherwise it
// returns immediately and the replica serves NotReady until the load is done.
func (m *Manager) Start(ctx context.Context) error {
	if m.loader == nil {
		return errors.New("manager: no loader configured")
	}
	id := strings.TrimSpace(m.initial)
	if id == "" {
		return invalidArtifactError{msg: "initial artifact id is empty"}
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed()
	}
	if m.started {
		m.mu.Unlock()
		return errors.New("manager: already started")
	}
	m.started = true
	m.updating = true
	m.lastError = ""
	m.mu.Unlock()
	updatingGauge.Set(1)

	m.log.Info().Str("artifact", id).Bool("sync", m.syncStart).Msg("initial load start")
	if m.syncStart {
		return m.initialLoad(ctx, id)
	}
	m.loads.Add(1)
	go func() {
		defer m.loads.Done()
		_ = m.initialLoad(context.Background(), id)
	}()
	return nil
}

func (m *Manager) initialLoad(ctx context.Context, id string) error {
	start := time.Now()
	h, err := m.loader.Load(ctx, id)
	took := time.Since(start)
	loadDuration.Observe(took.Seconds())

	m.mu.Lock()
	if err != nil {
		lf := ErrLoadFailed(id, err)
		m.lastError = "initial load failed: " + lf.Error()
		m.updating = false
		m.mu.Unlock()
		updatingGauge.Set(0)
		m.log.Error().Err(err).Str("artifact", id).Dur("took", took).Msg("initial load failed")
		m.publish(Event{Name: EventInitialLoadFailed, ArtifactID: id, Fields: map[string]any{"error": err.Error()}})
		return lf
	}
	m.updating = false
	if m.closed {
		m.mu.Unlock()
		updatingGauge.Set(0)
		_ = h.Close()
		return errors.New("manager: closed during initial load")
	}
	cur := m.tracker.Current()
	m.active.Store(&slot{handle: h, state: cur})
	m.mu.Unlock()
	updatingGauge.Set(0)
	activeVersion.Set(float64(cur.Version))
	m.log.Info().Str("artifact", id).Dur("took", took).Msg("initial load done")
	m.publish(Event{Name: EventInitialLoadDone, ArtifactID: id, Version: cur.Version})
	return nil
}

// Ready reports whether an artifact has been loaded and can serve.
func (m *Manager) Ready() bool {
	return m.active.Load() != nil
}

// CurrentVersion returns the version state of the last successful swap.
func (m *Manager) CurrentVersion() VersionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker.Current()
}

// Close releases the active handle and any handles awaiting release. Loads
// still in flight close their handle instead of publishing it.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	toClose := m.stopPendingLocked()
	if s := m.active.Swap(nil); s != nil {
		toClose = append(toClose, s.handle)
	}
	m.mu.Unlock()

	var errs []error
	for _, h := range toClose {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stopPendingLocked cancels release timers that have not fired and returns
// their handles. A timer that already fired keeps its entry so its callback
// still closes the handle. Callers hold m.mu.
func (m *Manager) stopPendingLocked() []engine.Handle {
	var out []engine.Handle
	for t, h := range m.pending {
		if t.Stop() {
			out = append(out, h)
			delete(m.pending, t)
		}
	}
	return out
}

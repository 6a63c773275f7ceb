package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelswap/internal/engine"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultReleaseGrace = 2 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Loader turns artifact ids into ready handles. Required.
	Loader engine.Loader
	// InitialArtifact is loaded by Start and describes version 1.
	InitialArtifact string
	// SyncInitialLoad makes Start block until the initial load finishes.
	SyncInitialLoad bool
	// ReleaseGrace delays closing a replaced handle so in-flight requests
	// drain. Negative releases immediately.
	ReleaseGrace time.Duration
	Logger       *zerolog.Logger
	Publisher    EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		loader:    cfg.Loader,
		initial:   cfg.InitialArtifact,
		syncStart: cfg.SyncInitialLoad,
		tracker:   NewVersionTracker(cfg.InitialArtifact),
		pending:   make(map[*time.Timer]engine.Handle),
		log:       zerolog.Nop(),
		pub:       noopPublisher{},
	}
	switch {
	case cfg.ReleaseGrace == 0:
		m.releaseGrace = defaultReleaseGrace
	case cfg.ReleaseGrace < 0:
		m.releaseGrace = 0
	default:
		m.releaseGrace = cfg.ReleaseGrace
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	if cfg.Publisher != nil {
		m.pub = cfg.Publisher
	}
	m.startTime = time.Now()
	return m
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"modelswap/pkg/types"
)

// Resolver maps artifact ids to on-disk artifacts.
type Resolver interface {
	Lookup(id string) (types.Artifact, bool)
}

// SimConfig configures the simulated engine.
type SimConfig struct {
	// LoadDelay is how long a load takes.
	LoadDelay time.Duration
	// Resolver, when set, restricts loadable ids to those it knows.
	Resolver Resolver
	// FailPrefix makes loads of ids with this prefix fail. Empty disables.
	FailPrefix string
}

// Sim is a deterministic in-process engine. Output echoes the input tagged
// with the artifact id so callers can tell which artifact served them.
type Sim struct {
	cfg   SimConfig
	loads atomic.Int64
}

// NewSim constructs a simulated engine.
func NewSim(cfg SimConfig) *Sim { return &Sim{cfg: cfg} }

// Loads reports how many loads were attempted.
func (s *Sim) Loads() int64 { return s.loads.Load() }

func (s *Sim) Load(ctx context.Context, artifactID string) (Handle, error) {
	s.loads.Add(1)
	if strings.TrimSpace(artifactID) == "" {
		return nil, fmt.Errorf("artifact id is empty")
	}
	if s.cfg.LoadDelay > 0 {
		select {
		case <-time.After(s.cfg.LoadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.cfg.FailPrefix != "" && strings.HasPrefix(artifactID, s.cfg.FailPrefix) {
		return nil, fmt.Errorf("simulated load failure for %s", artifactID)
	}
	if s.cfg.Resolver != nil {
		if _, ok := s.cfg.Resolver.Lookup(artifactID); !ok {
			return nil, ErrArtifactNotFound(artifactID)
		}
	}
	return &simHandle{id: artifactID}, nil
}

type simHandle struct {
	id     string
	closed atomic.Bool
}

func (h *simHandle) Run(ctx context.Context, req Request) (string, error) {
	if h.closed.Load() {
		return "", fmt.Errorf("handle for %s is closed", h.id)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	max := req.Params.MaxTokens
	if max <= 0 {
		max = DefaultMaxTokens
	}
	words := strings.Fields(FormatPrompt(req.SystemPrompt, req.Input))
	if len(words) > max {
		words = words[:max]
	}
	return "[" + h.id + "] " + strings.Join(words, " "), nil
}

func (h *simHandle) Close() error {
	h.closed.Store(true)
	return nil
}

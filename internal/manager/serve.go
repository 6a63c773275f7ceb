package manager

import (
	"context"
	"fmt"

	"modelswap/internal/engine"
)

// Serve runs req against the active artifact. It never waits for, or is
// affected by, an update in progress: requests started before a swap finish
// on the handle they picked up.
func (m *Manager) Serve(ctx context.Context, req engine.Request) (Result, error) {
	s := m.active.Load()
	if s == nil {
		servesTotal.WithLabelValues("not_ready").Inc()
		return Result{}, ErrNotReady()
	}
	out, err := s.handle.Run(ctx, req)
	if err != nil {
		servesTotal.WithLabelValues("error").Inc()
		return Result{Version: s.state.Version, ArtifactID: s.state.ArtifactID},
			fmt.Errorf("run %s: %w", s.state.ArtifactID, err)
	}
	servesTotal.WithLabelValues("ok").Inc()
	return Result{Output: out, Version: s.state.Version, ArtifactID: s.state.ArtifactID}, nil
}

package manager

import "sync"

// VersionTracker counts successful swaps. It starts at {1, initial} and
// advances by exactly one per Bump.
type VersionTracker struct {
	mu  sync.RWMutex
	cur VersionState
}

// NewVersionTracker returns a tracker describing the initial artifact.
func NewVersionTracker(initialArtifactID string) *VersionTracker {
	return &VersionTracker{cur: VersionState{Version: 1, ArtifactID: initialArtifactID}}
}

// Current returns the current version state.
func (t *VersionTracker) Current() VersionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cur
}

// Bump records a successful swap to artifactID and returns the new state.
func (t *VersionTracker) Bump(artifactID string) VersionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = VersionState{Version: t.cur.Version + 1, ArtifactID: artifactID}
	return t.cur
}

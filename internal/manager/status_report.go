package manager

import (
	"time"

	"modelswap/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// under the lock, so ready agrees with updating
	ready := m.active.Load() != nil
	snap := Snapshot{
		Current:   m.tracker.Current(),
		Ready:     ready,
		Updating:  m.updating,
		LastError: m.lastError,
	}
	switch {
	case m.updating && !ready:
		snap.State = StateLoading
	case m.updating:
		snap.State = StateUpdating
	case !ready:
		snap.State = StateError
	default:
		snap.State = StateReady
	}
	return snap
}

// Status builds the /status response polled by the rollout orchestrator.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		Version:        snap.Current.Version,
		ArtifactID:     snap.Current.ArtifactID,
		Updating:       snap.Updating,
		LastError:      snap.LastError,
		Ready:          snap.Ready,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

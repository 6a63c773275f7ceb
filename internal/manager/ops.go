package manager

import (
	"context"
	"strings"
	"time"

	"modelswap/internal/engine"
)

// RequestUpdate starts a background swap to artifactID and returns at once.
// It is rejected while another update (or the initial load) is in flight.
// The currently active artifact is reloaded too, which bumps the version.
func (m *Manager) RequestUpdate(artifactID string) (string, error) {
	id := strings.TrimSpace(artifactID)
	if id == "" {
		return "", invalidArtifactError{msg: "artifact_id is required"}
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed()
	}
	if m.updating {
		m.mu.Unlock()
		swapsTotal.WithLabelValues("rejected").Inc()
		m.log.Warn().Str("artifact", id).Msg("update rejected: already updating")
		m.publish(Event{Name: EventUpdateRejected, ArtifactID: id})
		return "update already in progress", alreadyUpdatingError{artifactID: id}
	}
	m.updating = true
	m.lastError = ""
	m.loads.Add(1)
	m.mu.Unlock()
	updatingGauge.Set(1)

	m.log.Info().Str("artifact", id).Msg("update accepted")
	m.publish(Event{Name: EventUpdateAccepted, ArtifactID: id})
	m.publish(Event{Name: EventLoadStart, ArtifactID: id})
	// Detached from any caller context: an accepted load always runs to completion.
	go m.loadAndSwap(context.Background(), id)
	return "update started", nil
}

// loadAndSwap loads the candidate and publishes it only on success.
func (m *Manager) loadAndSwap(ctx context.Context, id string) {
	defer m.loads.Done()
	start := time.Now()
	h, err := m.loader.Load(ctx, id)
	took := time.Since(start)
	loadDuration.Observe(took.Seconds())

	m.mu.Lock()
	if err != nil {
		lf := ErrLoadFailed(id, err)
		m.lastError = lf.Error()
		m.updating = false
		m.mu.Unlock()
		updatingGauge.Set(0)
		swapsTotal.WithLabelValues("failure").Inc()
		m.log.Error().Err(err).Str("artifact", id).Dur("took", took).Msg("load failed; keeping current artifact")
		m.publish(Event{Name: EventLoadFailed, ArtifactID: id, Fields: map[string]any{"error": err.Error()}})
		return
	}
	if m.closed {
		m.updating = false
		m.mu.Unlock()
		updatingGauge.Set(0)
		_ = h.Close()
		return
	}
	next := m.tracker.Bump(id)
	old := m.active.Swap(&slot{handle: h, state: next})
	if old != nil {
		m.scheduleReleaseLocked(old)
	}
	m.updating = false
	m.mu.Unlock()
	updatingGauge.Set(0)
	activeVersion.Set(float64(next.Version))
	swapsTotal.WithLabelValues("success").Inc()
	m.log.Info().Str("artifact", id).Int64("version", next.Version).Dur("took", took).Msg("swap done")
	m.publish(Event{Name: EventSwapDone, ArtifactID: id, Version: next.Version})
}

// scheduleReleaseLocked closes a replaced handle after the release grace.
// Callers hold m.mu.
func (m *Manager) scheduleReleaseLocked(old *slot) {
	var t *time.Timer
	t = time.AfterFunc(m.releaseGrace, func() {
		m.mu.Lock()
		_, ok := m.pending[t]
		delete(m.pending, t)
		m.mu.Unlock()
		if ok {
			m.release(old.handle, old.state)
		}
	})
	m.pending[t] = old.handle
}

func (m *Manager) release(h engine.Handle, vs VersionState) {
	if err := h.Close(); err != nil {
		m.log.Warn().Err(err).Str("artifact", vs.ArtifactID).Int64("version", vs.Version).Msg("release of replaced handle failed")
		m.publish(Event{Name: EventReleaseFailed, ArtifactID: vs.ArtifactID, Version: vs.Version, Fields: map[string]any{"error": err.Error()}})
	}
}

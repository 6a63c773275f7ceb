package e2e

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"modelswap/internal/engine"
	"modelswap/internal/httpapi"
	"modelswap/internal/manager"
	"modelswap/internal/rollout"
)

// replica is one modelswap replica served over a real HTTP listener.
type replica struct {
	srv *httptest.Server
	mgr *manager.Manager
}

// newReplica starts a manager on the simulated engine, synchronously loads
// initial, and serves it with the production router.
func newReplica(t *testing.T, initial string, sim engine.SimConfig) *replica {
	t.Helper()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Loader:          engine.NewSim(sim),
		InitialArtifact: initial,
		SyncInitialLoad: true,
		ReleaseGrace:    -1,
	})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start replica: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return &replica{srv: srv, mgr: mgr}
}

func newFleet(t *testing.T, n int, initial string, sim engine.SimConfig) []*replica {
	t.Helper()
	fleet := make([]*replica, n)
	for i := range fleet {
		fleet[i] = newReplica(t, initial, sim)
	}
	return fleet
}

func urls(fleet []*replica) []string {
	out := make([]string, len(fleet))
	for i, r := range fleet {
		out[i] = r.srv.URL
	}
	return out
}

func newOrchestrator(fleet []*replica, rec rollout.Recorder) *rollout.Orchestrator {
	clients := rollout.NewHTTPClients(urls(fleet), rollout.ClientOptions{Timeout: 2 * time.Second})
	return rollout.New(clients, rollout.Config{
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  -1,
		Timeout:      5 * time.Second,
		Retry:        rollout.RetryPolicy{Attempts: 2, MinBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond},
		Recorder:     rec,
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

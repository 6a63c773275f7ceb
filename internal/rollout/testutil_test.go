package rollout

import (
	"context"
	"errors"
	"sync"
	"time"

	"modelswap/pkg/types"
)

// fakeReplica simulates a replica's update/status behavior in memory.
type fakeReplica struct {
	name     string
	loadTime time.Duration
	failLoad bool
	reject   bool

	mu             sync.Mutex
	artifact       string
	version        int64
	updating       bool
	target         string
	doneAt         time.Time
	lastErr        string
	transportFails int
	statusFails    int
	dispatchCalls  int
	statusCalls    int
}

func newFakeReplica(name, artifact string, loadTime time.Duration) *fakeReplica {
	return &fakeReplica{name: name, artifact: artifact, version: 1, loadTime: loadTime}
}

func (f *fakeReplica) Name() string { return f.name }

func (f *fakeReplica) RequestUpdate(ctx context.Context, id string) (types.UpdateModelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatchCalls++
	if f.transportFails > 0 {
		f.transportFails--
		return types.UpdateModelResponse{}, transportError{replica: f.name, err: errors.New("connection refused")}
	}
	if f.reject || f.updating {
		return types.UpdateModelResponse{}, rejectedError{replica: f.name, reason: "update already in progress"}
	}
	f.updating = true
	f.lastErr = ""
	f.target = id
	f.doneAt = time.Now().Add(f.loadTime)
	return types.UpdateModelResponse{OK: true, ArtifactID: id, Message: "update started"}, nil
}

func (f *fakeReplica) Status(ctx context.Context) (types.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if err := ctx.Err(); err != nil {
		return types.StatusResponse{}, transportError{replica: f.name, err: err}
	}
	if f.statusFails > 0 {
		f.statusFails--
		return types.StatusResponse{}, transportError{replica: f.name, err: errors.New("connection reset")}
	}
	if f.updating && !time.Now().Before(f.doneAt) {
		f.updating = false
		if f.failLoad {
			f.lastErr = "load " + f.target + " failed: out of memory"
		} else {
			f.artifact = f.target
			f.version++
		}
	}
	return types.StatusResponse{
		Version:    f.version,
		ArtifactID: f.artifact,
		Updating:   f.updating,
		LastError:  f.lastErr,
		Ready:      true,
	}, nil
}

func (f *fakeReplica) Generate(ctx context.Context, req types.GenerateRequest) (GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return GenerateResult{Output: "[" + f.artifact + "] " + req.Input, Version: f.version, ArtifactID: f.artifact}, nil
}

func (f *fakeReplica) Ready(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeReplica) calls() (dispatch, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatchCalls, f.statusCalls
}

func clients(rs ...*fakeReplica) []ReplicaClient {
	out := make([]ReplicaClient, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// fastConfig scales rollout timings down for tests.
func fastConfig() Config {
	return Config{
		PollInterval: 10 * time.Millisecond,
		SettleDelay:  5 * time.Millisecond,
		Retry:        RetryPolicy{Attempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (m *memRecorder) Record(ctx context.Context, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

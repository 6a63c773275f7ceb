package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modelswap/internal/engine"
)

// fakeLoader is a controllable in-memory loader used for tests.
type fakeLoader struct {
	mu       sync.Mutex
	gates    map[string]chan struct{}
	fail     map[string]error
	closeErr error
	delay    time.Duration
	handles  []*fakeHandle
	calls    int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{gates: map[string]chan struct{}{}, fail: map[string]error{}}
}

// block makes loads of id wait until the returned func is called.
func (f *fakeLoader) block(id string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeLoader) failWith(id string, err error) {
	f.mu.Lock()
	f.fail[id] = err
	f.mu.Unlock()
}

func (f *fakeLoader) Load(ctx context.Context, id string) (engine.Handle, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[id]
	err := f.fail[id]
	delay := f.delay
	closeErr := f.closeErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	h := &fakeHandle{id: id, closeErr: closeErr}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h, nil
}

func (f *fakeLoader) loaded() []*fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeHandle, len(f.handles))
	copy(out, f.handles)
	return out
}

type fakeHandle struct {
	id       string
	closeErr error
	closed   atomic.Bool
	runs     atomic.Int64
}

func (h *fakeHandle) Run(ctx context.Context, req engine.Request) (string, error) {
	h.runs.Add(1)
	if h.closed.Load() {
		return "", errors.New("closed handle used")
	}
	return "[" + h.id + "] " + req.Input, nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return h.closeErr
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	waitFor(t, 2*time.Second, "update to finish", func() bool { return !m.Snapshot().Updating })
}

// startedManager returns a manager that already serves initial.
func startedManager(t *testing.T, l *fakeLoader, initial string) *Manager {
	t.Helper()
	m := NewWithConfig(ManagerConfig{Loader: l, InitialArtifact: initial, SyncInitialLoad: true, ReleaseGrace: -1})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"modelswap/internal/engine"
	"modelswap/internal/manager"
	"modelswap/pkg/types"
)

type mockService struct {
	mu        sync.Mutex
	snap      manager.Snapshot
	status    types.StatusResponse
	serveErr  error
	updateErr error
	lastReq   engine.Request
	updates   []string
}

func (m *mockService) Serve(ctx context.Context, req engine.Request) (manager.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.serveErr != nil {
		return manager.Result{}, m.serveErr
	}
	return manager.Result{Output: "out:" + req.Input, Version: 3, ArtifactID: "model-b"}, nil
}

func (m *mockService) RequestUpdate(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, id)
	if m.updateErr != nil {
		return "", m.updateErr
	}
	return "update started", nil
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Snapshot() manager.Snapshot    { return m.snap }

type mockDesired struct {
	ds types.DesiredState
	ok bool
}

func (d mockDesired) Read(ctx context.Context) (types.DesiredState, bool) { return d.ds, d.ok }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	w := get(NewMux(&mockService{}, nil), "/healthz")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestReady(t *testing.T) {
	svc := &mockService{snap: manager.Snapshot{Ready: true, Current: manager.VersionState{Version: 1, ArtifactID: "a"}}}
	w := get(NewMux(svc, nil), "/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReady_NotReady(t *testing.T) {
	svc := &mockService{snap: manager.Snapshot{Updating: true, Current: manager.VersionState{Version: 1, ArtifactID: "a"}}}
	w := get(NewMux(svc, nil), "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Ready || body.ArtifactID != "a" || !strings.Contains(body.Message, "loading") {
		t.Fatalf("unexpected body: %+v", body)
	}

	svc.snap = manager.Snapshot{LastError: "initial load failed: oom", Current: manager.VersionState{Version: 1, ArtifactID: "a"}}
	w = get(NewMux(svc, nil), "/ready")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "oom") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Version: 4, ArtifactID: "m", Updating: true, LastError: "x"}}
	w := get(NewMux(svc, nil), "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Version != 4 || body.ArtifactID != "m" || !body.Updating || body.LastError != "x" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGenerate_SetsVersionHeaders(t *testing.T) {
	svc := &mockService{}
	w := postJSON(t, NewMux(svc, nil), "/generate", `{"input":"hi","system_prompt":"be brief","max_tokens":7,"temperature":0.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get(types.HeaderModelVersion) != "3" || w.Header().Get(types.HeaderModelRepoID) != "model-b" {
		t.Fatalf("unexpected headers: %v", w.Header())
	}
	var body types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Output != "out:hi" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
	if svc.lastReq.SystemPrompt != "be brief" || svc.lastReq.Params.MaxTokens != 7 || svc.lastReq.Params.Temperature != 0.5 {
		t.Fatalf("request not forwarded: %+v", svc.lastReq)
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrNotReady(), http.StatusServiceUnavailable},
		{errors.New("engine exploded"), http.StatusInternalServerError},
		{fmt.Errorf("serve: %w", manager.ErrClosed()), http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		w := postJSON(t, NewMux(&mockService{serveErr: c.err}, nil), "/generate", `{"input":"hi"}`)
		if w.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, w.Code, c.want)
		}
		var body types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != c.want {
			t.Fatalf("unexpected error payload %s", w.Body.String())
		}
	}
}

func TestGenerate_BadRequests(t *testing.T) {
	h := NewMux(&mockService{}, nil)
	for _, body := range []string{"not-json", `{"input":"   "}`, `{"input":"x","max_tokens":-1}`, `{"input":"x","temperature":-0.1}`} {
		if w := postJSON(t, h, "/generate", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", body, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"input":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerate_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(64)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	body := `{"input":"` + strings.Repeat("a", 128) + `"}`
	if w := postJSON(t, NewMux(&mockService{}, nil), "/generate", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestUpdateModel(t *testing.T) {
	svc := &mockService{}
	w := postJSON(t, NewMux(svc, nil), "/update-model", `{"artifact_id":" model-c "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.UpdateModelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.OK || body.ArtifactID != "model-c" || body.Message != "update started" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestUpdateModel_ClosedManager(t *testing.T) {
	svc := &mockService{updateErr: manager.ErrClosed()}
	if w := postJSON(t, NewMux(svc, nil), "/update-model", `{"artifact_id":"m"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerate_ShutdownReturns503(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	cancel()
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(nil) })

	svc := &mockService{serveErr: context.Canceled}
	w := postJSON(t, NewMux(svc, nil), "/generate", `{"input":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Fatalf("expected an error payload, got %q", w.Body.String())
	}
}

func TestUpdateModel_AlreadyUpdating(t *testing.T) {
	svc := &mockService{updateErr: manager.ErrAlreadyUpdating("m")}
	w := postJSON(t, NewMux(svc, nil), "/update-model", `{"artifact_id":"m"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUpdateModel_AdminToken(t *testing.T) {
	SetAdminToken("s3cret")
	t.Cleanup(func() { SetAdminToken("") })
	svc := &mockService{}
	h := NewMux(svc, nil)

	if w := postJSON(t, h, "/update-model", `{"artifact_id":"m"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/update-model", bytes.NewBufferString(`{"artifact_id":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/update-model", bytes.NewBufferString(`{"artifact_id":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if len(svc.updates) != 1 {
		t.Fatalf("rejected requests must not reach the service: %v", svc.updates)
	}
}

func TestDesiredState(t *testing.T) {
	if w := get(NewMux(&mockService{}, nil), "/desired-state"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", w.Code)
	}
	if w := get(NewMux(&mockService{}, mockDesired{}), "/desired-state"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when absent, got %d", w.Code)
	}
	d := mockDesired{ds: types.DesiredState{DesiredArtifactID: "m", Timestamp: 1700000000.5}, ok: true}
	w := get(NewMux(&mockService{}, d), "/desired-state")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"desired_artifact_id":"m"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"http://ui.local"}, nil, nil)
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	h := NewMux(&mockService{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

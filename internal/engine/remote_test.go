package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCompletionServer(t *testing.T, models []string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var out modelsResponse
		for _, id := range models {
			out.Data = append(out.Data, struct {
				ID string `json:"id"`
			}{ID: id})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte("data: {\"choices\":[{\"text\":\"Hello\"}]}\n\n"))
			_, _ = w.Write([]byte(": keepalive\n"))
			_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\" " + req.Model + "\"}}]}\n\n"))
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": req.Model + ":" + req.Prompt}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_LoadAndRun(t *testing.T) {
	srv := newCompletionServer(t, []string{"m1"})
	r := NewRemote(RemoteConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	h, err := r.Load(context.Background(), "m1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := h.Run(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "m1:hi" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRemote_Stream(t *testing.T) {
	srv := newCompletionServer(t, nil)
	r := NewRemote(RemoteConfig{BaseURL: srv.URL, APIKey: "k", Stream: true})
	h, err := r.Load(context.Background(), "m2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := h.Run(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "Hello m2" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRemote_LoadUnknownModel(t *testing.T) {
	srv := newCompletionServer(t, []string{"m1"})
	r := NewRemote(RemoteConfig{BaseURL: srv.URL, APIKey: "k"})
	if _, err := r.Load(context.Background(), "other"); !IsArtifactNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemote_LoadHTTPError(t *testing.T) {
	srv := newCompletionServer(t, []string{"m1"})
	r := NewRemote(RemoteConfig{BaseURL: srv.URL})
	if _, err := r.Load(context.Background(), "m1"); err == nil {
		t.Fatalf("expected error for unauthorized request")
	}
}

func TestRemote_LoadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	r := NewRemote(RemoteConfig{BaseURL: url})
	if _, err := r.Load(context.Background(), "m1"); err == nil {
		t.Fatalf("expected unreachable error")
	}
}

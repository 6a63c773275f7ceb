package desired

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelswap/pkg/types"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestFileStore_PublishRead(t *testing.T) {
	at := time.Unix(1700000000, 500_000_000)
	fixedNow(t, at)
	p := filepath.Join(t.TempDir(), "shared", "desired.json")
	s := NewFileStore(p, zerolog.Nop())
	if _, ok := s.Read(context.Background()); ok {
		t.Fatalf("expected absent record before publish")
	}
	if err := s.Publish(context.Background(), "model-b"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ds, ok := s.Read(context.Background())
	if !ok || ds.DesiredArtifactID != "model-b" {
		t.Fatalf("unexpected record %+v ok=%v", ds, ok)
	}
	if ds.Timestamp != 1700000000.5 {
		t.Fatalf("unexpected timestamp %v", ds.Timestamp)
	}
	raw, _ := os.ReadFile(p)
	if string(raw) != `{"desired_artifact_id":"model-b","timestamp":1700000000.5}` {
		t.Fatalf("unexpected record format %s", raw)
	}
	// Last write wins.
	if err := s.Publish(context.Background(), "model-c"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ds, _ := s.Read(context.Background()); ds.DesiredArtifactID != "model-c" {
		t.Fatalf("expected model-c, got %+v", ds)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(p), ".desired.json.tmp-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFileStore_CorruptAndEmptyAreAbsent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "desired.json")
	s := NewFileStore(p, zerolog.Nop())
	for _, body := range []string{"{not json", `{"desired_artifact_id":""}`, `{"timestamp":1}`} {
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if ds, ok := s.Read(context.Background()); ok {
			t.Fatalf("expected %q to read as absent, got %+v", body, ds)
		}
	}
}

func TestFileStore_PublishEmptyRejected(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "d.json"), zerolog.Nop())
	if err := s.Publish(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty artifact id")
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	ds := types.DesiredState{DesiredArtifactID: "m", Timestamp: 12.25}
	for _, name := range []string{"", "json", "MSGPACK"} {
		c, err := CodecByName(name)
		if err != nil {
			t.Fatalf("codec %q: %v", name, err)
		}
		b, err := c.Marshal(ds)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := c.Unmarshal(b)
		if err != nil || got != ds {
			t.Fatalf("%s round trip: %+v %v", c.Name(), got, err)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Fatalf("expected unknown codec error")
	}
}

func TestOpen_Backends(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
	if _, err := Open(context.Background(), Config{Backend: "file"}); err == nil {
		t.Fatalf("expected error for file backend without path")
	}
	if _, err := Open(context.Background(), Config{Backend: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := Open(context.Background(), Config{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for redis backend without URL")
	}
	if _, err := Open(context.Background(), Config{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for etcd backend without endpoints")
	}
	if _, err := Open(context.Background(), Config{Backend: "s3"}); err == nil {
		t.Fatalf("expected error for s3 backend without bucket")
	}
	s, err := Open(context.Background(), Config{Backend: "file", Path: filepath.Join(t.TempDir(), "d.json")})
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
	_ = s.Close()
}

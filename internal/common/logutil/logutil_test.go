package logutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelFromString(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		"INFO":   zerolog.InfoLevel,
		"warn":   zerolog.WarnLevel,
		" error": zerolog.ErrorLevel,
		"bogus":  zerolog.InfoLevel,
		"":       zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := LevelFromString(in); got != want {
			t.Fatalf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "warn", "json")
	lg.Info().Msg("hidden")
	lg.Warn().Str("k", "v").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"k":"v"`) || !strings.Contains(out, `"time"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "info", "console")
	lg.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
}

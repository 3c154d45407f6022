package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if len(id) != 8 {
			t.Fatalf("expected 8 characters, got %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Errorf("expected mostly unique ids, got %d distinct", len(seen))
	}
}

func TestSessionIDContext(t *testing.T) {
	ctx := context.Background()
	if got := SessionIDFromContext(ctx); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	ctx = WithSessionID(ctx, "s-42")
	if got := SessionIDFromContext(ctx); got != "s-42" {
		t.Errorf("expected s-42, got %q", got)
	}
}

func TestLogFrameTruncates(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogFrame(l, "in", []byte(strings.Repeat("x", 1500)))
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["truncated"] != true {
		t.Error("expected truncated flag")
	}
	if frame, _ := entry["frame"].(string); len(frame) != 1000 {
		t.Errorf("expected 1000 byte frame, got %d", len(frame))
	}
	if entry["dir"] != "in" {
		t.Errorf("expected dir in, got %v", entry["dir"])
	}

	buf.Reset()
	LogFrame(l, "out", nil)
	if buf.Len() != 0 {
		t.Errorf("empty frame should not be logged, got %s", buf.String())
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := levelFromEnv(); got != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", got)
	}
	t.Setenv("LOG_LEVEL", "nonsense")
	if got := levelFromEnv(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
}

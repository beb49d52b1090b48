package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

// useBuffer installs a JSON logger writing to a buffer for the test.
func useBuffer(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(Options{Level: level, Format: "json", Output: &buf})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestFromContext_RunAndRequestIDs(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		wantRun   string
		wantReqID string
	}{
		{"bare context", context.Background(), "", ""},
		{"run only", ContextWithRun(context.Background(), "run-1"), "run-1", ""},
		{
			name:      "request and run",
			ctx:       ContextWithRun(context.WithValue(context.Background(), middleware.RequestIDKey, "req-9"), "run-2"),
			wantRun:   "run-2",
			wantReqID: "req-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := useBuffer(t, "info")
			FromContext(tt.ctx).Info("import started")

			entry := decodeLine(t, buf)
			if entry["service"] != Service {
				t.Errorf("service = %v, want %s", entry["service"], Service)
			}
			if got, _ := entry["run_id"].(string); got != tt.wantRun {
				t.Errorf("run_id = %q, want %q", got, tt.wantRun)
			}
			if got, _ := entry["request_id"].(string); got != tt.wantReqID {
				t.Errorf("request_id = %q, want %q", got, tt.wantReqID)
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	buf := useBuffer(t, "info")
	WithFields(ContextWithRun(context.Background(), "run-3"), "job", "ratings").Info("recalculating ratings")

	entry := decodeLine(t, buf)
	if entry["job"] != "ratings" || entry["run_id"] != "run-3" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"WARNING", false, true},
		{"error", false, false},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := useBuffer(t, tt.level)
			slog.Debug("debug entry")
			slog.Warn("warn entry")

			out := buf.String()
			if got := strings.Contains(out, "debug entry"); got != tt.debugSeen {
				t.Errorf("debug logged = %v, want %v", got, tt.debugSeen)
			}
			if got := strings.Contains(out, "warn entry"); got != tt.warnSeen {
				t.Errorf("warn logged = %v, want %v", got, tt.warnSeen)
			}
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Format: "text", Output: &buf}).Info("records fetched", "candidates", 3)

	out := buf.String()
	if !strings.Contains(out, "msg=\"records fetched\"") || !strings.Contains(out, "candidates=3") {
		t.Errorf("text output = %q", out)
	}
}

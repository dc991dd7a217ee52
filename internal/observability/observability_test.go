package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestNewHandler(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{format: "text", check: func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") {
				t.Errorf("text output = %q", out)
			}
		}},
		{format: "json", check: func(t *testing.T, out string) {
			var record map[string]any
			if err := json.Unmarshal([]byte(out), &record); err != nil {
				t.Fatalf("json output = %q: %v", out, err)
			}
			if record["msg"] != "hello" {
				t.Errorf("msg = %v", record["msg"])
			}
		}},
		{format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			handler, err := NewHandler(&buf, slog.LevelInfo, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHandler() error = %v", err)
			}

			slog.New(handler).Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestNewHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, slog.LevelWarn, "text")
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	logger := slog.New(handler)
	logger.Info("dropped")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestInstrumentStdoutExporter(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var stderr, stdout bytes.Buffer
	shutdown, err := instrument(context.Background(), slog.LevelInfo, "text", ExporterStdout, &stderr, &stdout)
	if err != nil {
		t.Fatalf("instrument() error = %v", err)
	}

	slog.Info("exported record")
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "exported record") {
		t.Errorf("stdout = %q, want exported record", stdout.String())
	}
}

func TestInstrumentRejectsUnknownExporter(t *testing.T) {
	var buf bytes.Buffer
	if _, err := instrument(context.Background(), slog.LevelInfo, "text", "carrier-pigeon", &buf, &buf); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSeverityMapping(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

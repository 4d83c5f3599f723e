package slogutil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"archscan/internal/config"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Pass finished", "type", "file", "pass", 2, "took", 150*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"[info] Pass finished | ", "type=file", "pass=2", "took=150ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("record should end with a newline")
	}
}

func TestLineHandler_NoAttrs(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("plain")
	if strings.Contains(buf.String(), "|") {
		t.Errorf("no separator expected without attributes: %q", buf.String())
	}
}

func TestLineHandler_Levels(t *testing.T) {
	tests := []struct {
		log  func(*slog.Logger)
		want string
	}{
		{func(l *slog.Logger) { l.Debug("m") }, "[debug]"},
		{func(l *slog.Logger) { l.Info("m") }, "[info]"},
		{func(l *slog.Logger) { l.Warn("m") }, "[warn]"},
		{func(l *slog.Logger) { l.Error("m") }, "[error]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("got %q", buf.String())
			}
		})
	}
}

func TestLineHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("records below warn leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message should be included")
	}
}

func TestLineHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run", "r1").WithGroup("engine")
	logger.Info("m", "pass", 1, slog.Group("stats", "writes", 3))

	out := buf.String()
	for _, want := range []string{"run=r1", "engine.pass=1", "engine.stats.writes=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestLineHandler_QuotesSpaces(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("m", "error", "cannot parse file")
	if !strings.Contains(buf.String(), `error="cannot parse file"`) {
		t.Errorf("got %q", buf.String())
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "json", slog.LevelInfo)).Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json output expected: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.want {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{0, true, Silent},
		{5, true, Silent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var info, warn bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewLineHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewLineHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)).With("run", "r1")

	logger.Info("info message")
	logger.Warn("warn message")

	if !strings.Contains(info.String(), "info message") || !strings.Contains(info.String(), "warn message") {
		t.Errorf("info sink = %q", info.String())
	}
	if strings.Contains(warn.String(), "info message") || !strings.Contains(warn.String(), "run=r1") {
		t.Errorf("warn sink = %q", warn.String())
	}
}

func TestLoggerFactory_AnalyzeLogger(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"

	var console bytes.Buffer
	f := NewLoggerFactory(root, cfg).WithCLILevel(slog.LevelError)
	logger, err := f.AnalyzeLogger(&console)
	if err != nil {
		t.Fatalf("AnalyzeLogger: %v", err)
	}
	logger.Debug("to file only")
	logger.Error("everywhere")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, ".archscan", "logs", "analyze.log"))
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), "to file only") || !strings.Contains(string(data), "everywhere") {
		t.Errorf("file = %q", data)
	}
	if strings.Contains(console.String(), "to file only") || !strings.Contains(console.String(), "everywhere") {
		t.Errorf("console = %q", console.String())
	}
}

func TestLoggerFactory_NoRoot(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLoggerFactory("", nil).AnalyzeLogger(&console)
	if err != nil {
		t.Fatal(err)
	}
	logger.Warn("console")
	if !strings.Contains(console.String(), "console") {
		t.Error("default console level should show warnings")
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
	logger.Error("ignored")
}

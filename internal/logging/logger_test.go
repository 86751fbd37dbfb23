package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"mslclient/internal/config"
	"mslclient/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("debug message")
	logger.Sync() //nolint:errcheck
}

func TestConsoleLoggerCallerOnlyAtDebug(t *testing.T) {
	for _, tc := range []struct {
		level      string
		wantCaller bool
	}{
		{"info", false},
		{"debug", true},
	} {
		logPath := filepath.Join(t.TempDir(), "console.log")
		logger, err := logging.New(logging.Options{
			Format:           "console",
			Level:            tc.level,
			OutputPaths:      []string{logPath},
			ErrorOutputPaths: []string{logPath},
		})
		if err != nil {
			t.Fatalf("New(%s): %v", tc.level, err)
		}
		logger.Info("negotiated")
		logger.Sync() //nolint:errcheck

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		if got := strings.Contains(string(content), ".go:"); got != tc.wantCaller {
			t.Fatalf("level %s: caller present=%v, want %v (%q)", tc.level, got, tc.wantCaller, content)
		}
	}
}

func TestJSONLoggerWritesFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("token cached", zap.Int64("sequence", 7))
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, content)
	}
	if entry["msg"] != "token cached" || entry["sequence"] != float64(7) {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "loud", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") || !strings.Contains(string(content), "shown") {
		t.Fatalf("unexpected output %q", content)
	}
}

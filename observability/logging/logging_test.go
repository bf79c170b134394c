package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("dexctl", "test", WithWriter(&buf), WithLevel("debug"))
	logger.Debug("fee reinjected", "pair", "WEGLD-USDC")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env", "pair"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing key %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" {
		t.Fatalf("unexpected severity %v", line["severity"])
	}
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("dexctl", "", WithWriter(&buf), WithLevel("warn"))
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info record to be filtered, got %q", buf.String())
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unknown levels default to info")
	}
}

func TestWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dex.log")
	logger := Setup("dexctl", "", WithFile(path, 1, 1))
	logger.Info("hello")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected rotated log file: %v", err)
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultsToInfoAndStderr(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	if logger.level != LevelInfo {
		t.Errorf("expected default level LevelInfo, got %v", logger.level)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected warn message in output, got: %s", buf.String())
	}
}

func TestLoggerFormatsKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("request complete", "eid", 8, "status", "ok")
	output := buf.String()
	if !strings.Contains(output, "eid=8") {
		t.Errorf("expected eid=8 in output, got: %s", output)
	}
	if !strings.Contains(output, "status=ok") {
		t.Errorf("expected status=ok in output, got: %s", output)
	}
}

func TestNamedPrefixesComponentAndNests(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	poller := root.Named("poller")
	poller.Info("started")
	if !strings.Contains(buf.String(), "[poller]") {
		t.Errorf("expected [poller] component tag, got: %s", buf.String())
	}

	buf.Reset()
	sub := poller.Named("eid8")
	sub.Info("polling")
	if !strings.Contains(buf.String(), "[poller.eid8]") {
		t.Errorf("expected nested component tag [poller.eid8], got: %s", buf.String())
	}
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message via package-level Info, got: %s", buf.String())
	}

	if Default() == nil {
		t.Error("Default() returned nil after SetDefault")
	}
}

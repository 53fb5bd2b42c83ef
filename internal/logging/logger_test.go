package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{
			name:   "default config",
			config: nil,
			want:   "text",
		},
		{
			name: "json format",
			config: &Config{
				Level:  LevelInfo,
				Format: "json",
				Output: &bytes.Buffer{},
			},
			want: "json",
		},
		{
			name: "text format",
			config: &Config{
				Level:  LevelDebug,
				Format: "text",
				Output: &bytes.Buffer{},
			},
			want: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
			if logger.format != tt.want {
				t.Errorf("format = %q, want %q", logger.format, tt.want)
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "text",
		Output: &buf,
		Sync:   true,
	}

	logger := NewLogger(config)

	pidLogger := logger.WithPID(42)
	pidLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "pid=42") {
		t.Errorf("Expected pid=42 in output, got: %s", output)
	}

	buf.Reset()
	rtLogger := pidLogger.WithRecordType("coredump")
	rtLogger.Info("record message")

	output = buf.String()
	if !strings.Contains(output, "pid=42") {
		t.Errorf("Expected pid=42 in record logger output, got: %s", output)
	}
	if !strings.Contains(output, "record_type=coredump") {
		t.Errorf("Expected record_type=coredump in output, got: %s", output)
	}
}

func TestLoggerWithOp(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "text",
		Output: &buf,
		Sync:   true,
	}

	logger := NewLogger(config)
	opLogger := logger.WithOp("upload.commit")
	opLogger.Debug("processing request")

	output := buf.String()
	if !strings.Contains(output, "op=upload.commit") {
		t.Errorf("Expected op=upload.commit in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "text",
		Output: &buf,
		Sync:   true,
	}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("Expected 'test error' in output, got: %s", output)
	}
}

func TestLoggerRecentWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true})

	for i := 0; i < 20; i++ {
		logger.Warnf("warning %d", i)
	}

	warnings := logger.RecentWarnings()
	if len(warnings) != 16 {
		t.Fatalf("expected 16 retained warnings, got %d", len(warnings))
	}
	if !strings.Contains(warnings[0], "warning 4") {
		t.Errorf("expected oldest retained warning to be 'warning 4', got %q", warnings[0])
	}
	if !strings.Contains(warnings[len(warnings)-1], "warning 19") {
		t.Errorf("expected newest warning to be 'warning 19', got %q", warnings[len(warnings)-1])
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "text",
		Output: &buf,
		Sync:   true,
	}

	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("Expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	output = buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message, got: %s", output)
	}

	buf.Reset()
	Warn("warning message")
	output = buf.String()
	if !strings.Contains(output, "warning message") {
		t.Errorf("Expected warning message, got: %s", output)
	}

	buf.Reset()
	Error("error message")
	output = buf.String()
	if !strings.Contains(output, "error message") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

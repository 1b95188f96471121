package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name     string
		level    string
		expected zapcore.Level
	}{
		{name: "debug", level: "debug", expected: zapcore.DebugLevel},
		{name: "info", level: "info", expected: zapcore.InfoLevel},
		{name: "warn", level: "warn", expected: zapcore.WarnLevel},
		{name: "warning alias", level: "warning", expected: zapcore.WarnLevel},
		{name: "error", level: "error", expected: zapcore.ErrorLevel},
		{name: "mixed case with spaces", level: "  ERROR ", expected: zapcore.ErrorLevel},
		{name: "empty falls back to info", level: "", expected: zapcore.InfoLevel},
		{name: "unknown falls back to info", level: "verbose", expected: zapcore.InfoLevel},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ParseLevel(testCase.level); got != testCase.expected {
				t.Fatalf("ParseLevel(%q) = %s, want %s", testCase.level, got, testCase.expected)
			}
		})
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger, err := NewLogger("error")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be suppressed at error level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected error level enabled")
	}
}

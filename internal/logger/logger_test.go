package logger

import (
	"testing"

	"github.com/samvad-hq/fetchapi/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestDefaultLoggerIsSafeBeforeAndAfterInit(t *testing.T) {
	prev := S
	defer func() { S = prev }()

	S = nil
	Default().InfoObj("before init", "payload", map[string]any{"k": "v"})

	if _, err := Init(&config.Config{AppName: "fetchapi", Env: "test", LogLevel: "error"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if S == nil {
		t.Fatalf("expected package logger to be set")
	}
	Default().DebugObj("filtered", "payload", 1)

	var l Logger = NopLogger{}
	l.ErrorObj("dropped", "payload", nil)
}

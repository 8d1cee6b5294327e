package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"INFO":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("POST", "/chat?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("POST", "/chat?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("short query override failed: %v", got)
	}
	r = httptest.NewRequest("POST", "/chat", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	SetDefaultLogLevel("off")
	defer SetDefaultLogLevel("info")
	if got := requestLogLevel(httptest.NewRequest("POST", "/chat", nil)); got != LevelOff {
		t.Fatalf("default level not applied: %v", got)
	}
}

func TestLogLevelToZerolog(t *testing.T) {
	if LevelOff.zerolog() != zerolog.Disabled || LevelDebug.zerolog() != zerolog.DebugLevel || LevelError.zerolog() != zerolog.ErrorLevel {
		t.Fatalf("unexpected level mapping")
	}
}

package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CHAT_TEST_STR", "from-env")
	if got := getEnv("CHAT_TEST_STR", "fallback"); got != "from-env" {
		t.Fatalf("getEnv = %q, want from-env", got)
	}
	if got := getEnv("CHAT_TEST_STR_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("getEnv = %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid", value: "42", want: 42},
		{name: "not a number", value: "twenty", want: 20},
		{name: "zero rejected", value: "0", want: 20},
		{name: "negative rejected", value: "-5", want: 20},
		{name: "empty", value: "", want: 20},
	}

	for _, tc := range tests {
		t.Setenv("CHAT_TEST_INT", tc.value)
		if got := getEnvInt("CHAT_TEST_INT", 20); got != tc.want {
			t.Fatalf("%s: getEnvInt = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "valid", value: "750ms", want: 750 * time.Millisecond},
		{name: "compound", value: "1m30s", want: 90 * time.Second},
		{name: "not a duration", value: "soon", want: 5 * time.Second},
		{name: "bare number rejected", value: "5", want: 5 * time.Second},
		{name: "negative rejected", value: "-2s", want: 5 * time.Second},
		{name: "empty", value: "", want: 5 * time.Second},
	}

	for _, tc := range tests {
		t.Setenv("CHAT_TEST_DURATION", tc.value)
		if got := getEnvDuration("CHAT_TEST_DURATION", 5*time.Second); got != tc.want {
			t.Fatalf("%s: getEnvDuration = %v, want %v", tc.name, got, tc.want)
		}
	}
}

package cli

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		want  slog.Level
	}{
		{"debug", false, slog.LevelDebug},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"info", false, slog.LevelInfo},
		{"", false, slog.LevelInfo},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		isDebug = tt.debug
		if got := logLevel(tt.name); got != tt.want {
			t.Errorf("logLevel(%q) with debug=%v = %v, want %v", tt.name, tt.debug, got, tt.want)
		}
	}
	isDebug = false
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "batch": false, "stats": false, "migrate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

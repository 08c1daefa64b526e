package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/config"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a much longer element text", 10, "a much ..."},
		{"Ünïcödé títle here", 8, "Ünïcö..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	path := filepath.Join(t.TempDir(), "logs", "torrentsnag.log")
	log, err := setupLogger(config.LoggingConfig{Level: "debug", Format: "json", File: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("setupLogger() error = %v", err)
	}

	log.Debug().Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("log file is empty")
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", zerolog.GlobalLevel())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"scan", "send", "test", "handlers", "patterns", "filters", "select", "settings", "tracking", "serve", "update", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Errorf("command %q not registered", name)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadFrom(home)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.RequestTimeoutSeconds != 30 {
		t.Fatalf("timeout = %d, want 30", cfg.RequestTimeoutSeconds)
	}
	if cfg.Sync.MaxReconnectAttempts != 10 {
		t.Fatalf("max reconnect = %d, want 10", cfg.Sync.MaxReconnectAttempts)
	}
	if cfg.Sync.ThrottleWindowMillis != 1000 {
		t.Fatalf("throttle = %d, want 1000", cfg.Sync.ThrottleWindowMillis)
	}
	if cfg.SocketURL == "" {
		t.Fatal("expected derived socket URL")
	}
}

func TestLoadFrom_FileOverrides(t *testing.T) {
	home := t.TempDir()
	yaml := `
server_url: https://tasks.example.com/api/
log_level: debug
sync:
  max_reconnect_attempts: 3
`
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(home)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ServerURL != "https://tasks.example.com/api" {
		t.Fatalf("server url = %q (trailing slash should be trimmed)", cfg.ServerURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Sync.MaxReconnectAttempts != 3 {
		t.Fatalf("max reconnect = %d, want 3", cfg.Sync.MaxReconnectAttempts)
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKWIRE_SERVER_URL", "http://10.0.0.5:9000")
	cfg, err := LoadFrom(home)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ServerURL != "http://10.0.0.5:9000" {
		t.Fatalf("server url = %q, want env value", cfg.ServerURL)
	}
}

func TestDeriveSocketURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://127.0.0.1:4000", "ws://127.0.0.1:4000/ws"},
		{"https://tasks.example.com", "wss://tasks.example.com/ws"},
		{"https://tasks.example.com/api", "wss://tasks.example.com/api/ws"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := deriveSocketURL(tc.in); got != tc.want {
			t.Errorf("deriveSocketURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprint_Stable(t *testing.T) {
	home := t.TempDir()
	a, err := LoadFrom(home)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadFrom(home)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint changed without config change")
	}
	b.ServerURL = "http://elsewhere:1"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint did not change with config change")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadFrom(home)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.ChatIDs = []int64{42}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFrom(home)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Channels.Telegram.Enabled || len(got.Channels.Telegram.ChatIDs) != 1 || got.Channels.Telegram.ChatIDs[0] != 42 {
		t.Fatalf("round trip lost telegram config: %+v", got.Channels.Telegram)
	}
}

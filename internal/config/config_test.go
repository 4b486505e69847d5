package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sync.FlushInterval != 30*time.Second {
		t.Errorf("FlushInterval = %v, want 30s", cfg.Sync.FlushInterval)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
user: asha@example.com
server:
  url: https://ft.example.com/
cache:
  backend: bolt
  path: /tmp/ft.bolt
sync:
  flush_interval: 0s
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "asha@example.com" {
		t.Errorf("User = %q", cfg.User)
	}
	if cfg.Cache.Backend != "bolt" {
		t.Errorf("Backend = %q, want bolt", cfg.Cache.Backend)
	}
	if cfg.Sync.FlushInterval != 0 {
		t.Errorf("FlushInterval = %v, want 0", cfg.Sync.FlushInterval)
	}
	if cfg.Server.WSURL != "wss://ft.example.com/ws" {
		t.Errorf("WSURL = %q", cfg.Server.WSURL)
	}
	// Untouched keys keep their defaults.
	if cfg.Sync.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default", cfg.Sync.RequestTimeout)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
user = "ravi@example.com"

[log]
level = "debug"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "ravi@example.com" || cfg.Log.Level != "debug" {
		t.Errorf("got user %q level %q", cfg.User, cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "user: file@example.com\n")
	t.Setenv("FT_USER", "env@example.com")
	t.Setenv("FT_SERVER_URL", "http://10.0.0.2:5000")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "env@example.com" {
		t.Errorf("User = %q, want env override", cfg.User)
	}
	if cfg.Server.URL != "http://10.0.0.2:5000" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("FT_USER", "env@example.com")

	flags := pflag.NewFlagSet("ft", pflag.ContinueOnError)
	flags.String("user", "", "")
	if err := flags.Parse([]string{"--user", "flag@example.com"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeFile(t, "config.yaml", ""), flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "flag@example.com" {
		t.Errorf("User = %q, want flag override", cfg.User)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory needs no path", func(c *Config) { c.Cache.Backend = "memory"; c.Cache.Path = "" }, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"missing path", func(c *Config) { c.Cache.Path = "" }, true},
		{"short key", func(c *Config) { c.Cache.Key = "abcd" }, true},
		{"missing server", func(c *Config) { c.Server.URL = "" }, true},
		{"negative flush", func(c *Config) { c.Sync.FlushInterval = -time.Second }, true},
		{"zero timeout", func(c *Config) { c.Sync.RequestTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:5000":   "ws://localhost:5000/ws",
		"https://ft.example.com/": "wss://ft.example.com/ws",
		"ft.internal:5000":        "ft.internal:5000/ws",
	}
	for in, want := range tests {
		if got := WebsocketURL(in); got != want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// Package config loads fintrack settings from a config file, FT_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (FT_SERVER_URL, ...).
const EnvPrefix = "FT"

// Config holds configuration for the client, the watcher and the backend.
type Config struct {
	// User is the owner email attached to new transactions.
	User string `mapstructure:"user"`

	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Inbox  InboxConfig  `mapstructure:"inbox"`
	Log    LogConfig    `mapstructure:"log"`
	Serve  ServeConfig  `mapstructure:"serve"`
	Parser ParserConfig `mapstructure:"parser"`
}

// ServerConfig locates the remote backend.
type ServerConfig struct {
	URL string `mapstructure:"url"`
	// WSURL defaults to URL with a ws scheme and /ws path.
	WSURL string `mapstructure:"ws_url"`
	// Session is passed through as the session cookie.
	Session string `mapstructure:"session"`
}

// CacheConfig selects the durable cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	// Key is a hex encoded 32-byte key. Empty disables encryption.
	Key string `mapstructure:"key"`
}

// SyncConfig tunes the flush loop.
type SyncConfig struct {
	// FlushInterval is the periodic flush interval. 0 disables the ticker.
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// InboxConfig points at the OCR drop folder.
type InboxConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ServeConfig configures `ft serve`.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
	DB   string `mapstructure:"db"`
}

// ParserConfig configures the optional LLM extractor.
type ParserConfig struct {
	AnthropicKey string `mapstructure:"anthropic_key"`
	Model        string `mapstructure:"model"`
}

// DefaultConfig returns sensible defaults rooted at the user's data directory.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:5000",
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dataDir, "cache.db"),
		},
		Sync: SyncConfig{
			FlushInterval:  30 * time.Second,
			ProbeInterval:  15 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Inbox: InboxConfig{
			Dir: filepath.Join(dataDir, "inbox"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Serve: ServeConfig{
			Addr: ":5000",
			DB:   filepath.Join(dataDir, "server.db"),
		},
		Parser: ParserConfig{
			Model: "claude-sonnet-4-5",
		},
	}
}

// DataDir returns $XDG_DATA_HOME/fintrack, falling back to ~/.local/share.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "fintrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fintrack"
	}
	return filepath.Join(home, ".local", "share", "fintrack")
}

// ConfigDir returns the directory searched for config.yaml / config.toml.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fintrack")
	}
	return ".fintrack"
}

// Load builds the effective configuration. file may be empty to search the
// default config directory; a missing default file is not an error.
// flags, when non-nil, override file and environment values.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"user":      "user",
	"server":    "server.url",
	"cache":     "cache.path",
	"backend":   "cache.backend",
	"log-level": "log.level",
	"log-file":  "log.file",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("user", d.User)
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.ws_url", d.Server.WSURL)
	v.SetDefault("server.session", d.Server.Session)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.key", d.Cache.Key)
	v.SetDefault("sync.flush_interval", d.Sync.FlushInterval)
	v.SetDefault("sync.probe_interval", d.Sync.ProbeInterval)
	v.SetDefault("sync.request_timeout", d.Sync.RequestTimeout)
	v.SetDefault("inbox.dir", d.Inbox.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.db", d.Serve.DB)
	v.SetDefault("parser.anthropic_key", d.Parser.AnthropicKey)
	v.SetDefault("parser.model", d.Parser.Model)
}

func (c *Config) applyDerived() {
	if c.Server.WSURL == "" {
		c.Server.WSURL = WebsocketURL(c.Server.URL)
	}
}

// WebsocketURL derives the push channel URL from an http(s) base URL.
func WebsocketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return base + "/ws"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("invalid cache.backend %q (want sqlite, bolt or memory)", c.Cache.Backend)
	}
	if c.Cache.Backend != "memory" && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required for the %s backend", c.Cache.Backend)
	}
	if c.Cache.Key != "" && len(c.Cache.Key) != 64 {
		return fmt.Errorf("cache.key must be 64 hex characters")
	}
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Sync.FlushInterval < 0 {
		return fmt.Errorf("sync.flush_interval cannot be negative")
	}
	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("sync.request_timeout must be positive")
	}
	return nil
}

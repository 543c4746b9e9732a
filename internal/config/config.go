// Package config loads the server configuration from an optional YAML file,
// applies environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 3000
	DefaultStaticDir      = "web"
	DefaultQueueSize      = 32
	DefaultSendTimeout    = 5 * time.Second
	DefaultOutboxSize     = 32
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 8192
	DefaultJournalPath    = "data/journal.db"
	DefaultJournalBuffer  = 256
	DefaultExportMargin   = 10.0
)

// Config is the whole server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hub       HubConfig       `yaml:"hub"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Journal   JournalConfig   `yaml:"journal"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Export    ExportConfig    `yaml:"export"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// StaticDir is served for every path not claimed by the API. Empty disables it.
	StaticDir string `yaml:"static_dir"`
}

// HubConfig controls the broadcast hub.
type HubConfig struct {
	// QueueSize is how many requests may wait before submitters block.
	QueueSize int `yaml:"queue_size"`

	// SendTimeout bounds how long one client may hold up a broadcast before it
	// is dropped.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// SessionConfig controls each client connection.
type SessionConfig struct {
	OutboxSize     int           `yaml:"outbox_size"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// LogConfig controls logrus.
type LogConfig struct {
	// Level is any logrus level name: trace | debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// JournalConfig controls the sqlite activity journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Buffer  int    `yaml:"buffer"`
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	MDNS bool `yaml:"mdns"`

	// Instance is the advertised instance name. Defaults to the hostname.
	Instance string `yaml:"instance"`
}

// ExportConfig controls PDF export.
type ExportConfig struct {
	MarginMM float64 `yaml:"margin_mm"`
}

// Load builds the configuration. When path is empty only defaults and
// environment overrides apply.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := defaults()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// RestartRequired lists the keys that differ between prev and next but are
// only read at startup. Everything under log is applied live.
func RestartRequired(prev, next *Config) []string {
	var keys []string
	diff := func(key string, changed bool) {
		if changed {
			keys = append(keys, key)
		}
	}

	diff("server", prev.Server != next.Server)
	diff("hub", prev.Hub != next.Hub)
	diff("session", prev.Session != next.Session)
	diff("journal", prev.Journal != next.Journal)
	diff("discovery", prev.Discovery != next.Discovery)
	diff("export", prev.Export != next.Export)
	return keys
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:  DefaultHTTPPort,
			StaticDir: DefaultStaticDir,
		},
		Hub: HubConfig{
			QueueSize:   DefaultQueueSize,
			SendTimeout: DefaultSendTimeout,
		},
		Session: SessionConfig{
			OutboxSize:     DefaultOutboxSize,
			WriteWait:      DefaultWriteWait,
			PongWait:       DefaultPongWait,
			MaxMessageSize: DefaultMaxMessageSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Journal: JournalConfig{
			Path:   DefaultJournalPath,
			Buffer: DefaultJournalBuffer,
		},
		Export: ExportConfig{
			MarginMM: DefaultExportMargin,
		},
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q is not a number", v)
		}
		cfg.Server.HTTPPort = port
	}
	cfg.Server.StaticDir = getEnv("STATIC_DIR", cfg.Server.StaticDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
		cfg.Journal.Enabled = true
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Hub.QueueSize <= 0 {
		return fmt.Errorf("hub.queue_size must be positive")
	}
	if cfg.Hub.SendTimeout <= 0 {
		return fmt.Errorf("hub.send_timeout must be positive")
	}
	if cfg.Session.OutboxSize <= 0 {
		return fmt.Errorf("session.outbox_size must be positive")
	}
	if cfg.Session.WriteWait <= 0 || cfg.Session.PongWait <= 0 {
		return fmt.Errorf("session.write_wait and session.pong_wait must be positive")
	}
	if cfg.Session.MaxMessageSize <= 0 {
		return fmt.Errorf("session.max_message_size must be positive")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q unknown: want text|json", cfg.Log.Format)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if cfg.Journal.Buffer <= 0 {
		return fmt.Errorf("journal.buffer must be positive")
	}
	if cfg.Export.MarginMM < 0 {
		return fmt.Errorf("export.margin_mm must not be negative")
	}
	return nil
}

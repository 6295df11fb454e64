package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete objbridge configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls `objbridge serve`.
type ServerConfig struct {
	// Address is the listen address.
	Address string `mapstructure:"address"`
	// Path is where the WebSocket endpoint is mounted.
	Path string `mapstructure:"path"`
	// MetricsPath exposes Prometheus metrics. Empty disables the endpoint.
	MetricsPath string `mapstructure:"metrics_path"`
	// AllowedOrigins lists origins allowed to connect besides the server's
	// own host. "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// ClientConfig controls `objbridge watch` and `objbridge call`.
type ClientConfig struct {
	// URL is the WebSocket endpoint to connect to.
	URL string `mapstructure:"url"`
	// TimeoutSeconds bounds connecting and waiting for call results.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BridgeConfig controls bridges and their transport.
type BridgeConfig struct {
	// ThrottleMs delays flushes so changes are batched (0 = immediate).
	ThrottleMs int `mapstructure:"throttle_ms"`
	// PingIntervalSeconds is the WebSocket heartbeat interval (0 = disabled).
	PingIntervalSeconds int `mapstructure:"ping_interval_seconds"`
	// ReadTimeoutSeconds is how long to wait for a frame or pong.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
	// WriteTimeoutSeconds is how long a frame write may take.
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	// MaxMessageBytes limits incoming frames.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is text or json.
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:                ":8080",
			Path:                   "/ws",
			MetricsPath:            "/metrics",
			AllowedOrigins:         []string{},
			ShutdownTimeoutSeconds: 10,
		},
		Client: ClientConfig{
			URL:            "ws://localhost:8080/ws",
			TimeoutSeconds: 10,
		},
		Bridge: BridgeConfig{
			ThrottleMs:          16,
			PingIntervalSeconds: 30,
			ReadTimeoutSeconds:  60,
			WriteTimeoutSeconds: 10,
			MaxMessageBytes:     16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("server.path", defaults.Server.Path)
	v.SetDefault("server.metrics_path", defaults.Server.MetricsPath)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	v.SetDefault("client.url", defaults.Client.URL)
	v.SetDefault("client.timeout_seconds", defaults.Client.TimeoutSeconds)

	v.SetDefault("bridge.throttle_ms", defaults.Bridge.ThrottleMs)
	v.SetDefault("bridge.ping_interval_seconds", defaults.Bridge.PingIntervalSeconds)
	v.SetDefault("bridge.read_timeout_seconds", defaults.Bridge.ReadTimeoutSeconds)
	v.SetDefault("bridge.write_timeout_seconds", defaults.Bridge.WriteTimeoutSeconds)
	v.SetDefault("bridge.max_message_bytes", defaults.Bridge.MaxMessageBytes)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

// New returns a viper instance with defaults, environment binding and the
// config file loaded. configFile overrides the file search; a missing
// default file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("OBJBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("objbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "objbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".objbridge"
	}
	return filepath.Join(home, ".config", "objbridge")
}

// Throttle returns the flush delay.
func (c *BridgeConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMs) * time.Millisecond
}

// PingInterval returns the heartbeat interval (0 means disabled).
func (c *BridgeConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

// ReadTimeout returns the read deadline.
func (c *BridgeConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write deadline.
func (c *BridgeConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// Timeout returns the client timeout.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// NewLogger builds a logger writing to w.
func (c *LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

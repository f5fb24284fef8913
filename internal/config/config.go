package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Slskd   SlskdConfig   `mapstructure:"slskd"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Search  SearchConfig  `mapstructure:"search"`
	Health  HealthConfig  `mapstructure:"health"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SlskdConfig holds the connection settings for the slskd daemon.
type SlskdConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	URLBase string        `mapstructure:"url_base"`
	UseSSL  bool          `mapstructure:"use_ssl"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// QueueConfig controls queue reconciliation and removal.
type QueueConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	IdentifierScheme   string        `mapstructure:"identifier_scheme"`
	Concurrency        int           `mapstructure:"concurrency"`
	RemoveWaitTimeout  time.Duration `mapstructure:"remove_wait_timeout"`
	RemovePollInterval time.Duration `mapstructure:"remove_poll_interval"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	MinPeerUploadSpeed int           `mapstructure:"min_peer_upload_speed"` // MB/s
	MinFileCount       int           `mapstructure:"min_file_count"`
	IgnoredUsers       []string      `mapstructure:"ignored_users"`
	Retention          time.Duration `mapstructure:"retention"`
}

// HealthConfig holds health check configuration.
type HealthConfig struct {
	CheckInterval           time.Duration `mapstructure:"check_interval"`
	StorageWarningThreshold float64       `mapstructure:"storage_warning_threshold"` // Free space fraction (0.20 = 20%)
	StorageErrorThreshold   float64       `mapstructure:"storage_error_threshold"`   // Free space fraction (0.05 = 5%)
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8686,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Slskd: SlskdConfig{
			Host:    "localhost",
			Port:    5030,
			Timeout: 30 * time.Second,
		},
		Queue: QueueConfig{
			PollInterval:       30 * time.Second,
			IdentifierScheme:   string(identity.SchemeLiteral),
			Concurrency:        4,
			RemoveWaitTimeout:  10 * time.Second,
			RemovePollInterval: 500 * time.Millisecond,
		},
		Search: SearchConfig{
			Timeout:   15 * time.Second,
			Retention: time.Hour,
		},
		Health: HealthConfig{
			CheckInterval:           5 * time.Minute,
			StorageWarningThreshold: 0.20,
			StorageErrorThreshold:   0.05,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

func load(configPath string) (*Config, *viper.Viper, error) {
	// A missing .env file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.slskbridge")
	}

	// Environment variable settings
	v.SetEnvPrefix("SLSKBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, v, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", "")

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", false)

	// slskd defaults
	v.SetDefault("slskd.host", d.Slskd.Host)
	v.SetDefault("slskd.port", d.Slskd.Port)
	v.SetDefault("slskd.url_base", "")
	v.SetDefault("slskd.use_ssl", false)
	v.SetDefault("slskd.api_key", "")
	v.SetDefault("slskd.timeout", d.Slskd.Timeout)

	// Queue defaults
	v.SetDefault("queue.poll_interval", d.Queue.PollInterval)
	v.SetDefault("queue.identifier_scheme", d.Queue.IdentifierScheme)
	v.SetDefault("queue.concurrency", d.Queue.Concurrency)
	v.SetDefault("queue.remove_wait_timeout", d.Queue.RemoveWaitTimeout)
	v.SetDefault("queue.remove_poll_interval", d.Queue.RemovePollInterval)

	// Search defaults
	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.min_peer_upload_speed", 0)
	v.SetDefault("search.min_file_count", 0)
	v.SetDefault("search.ignored_users", []string{})
	v.SetDefault("search.retention", d.Search.Retention)

	// Health and metrics defaults
	v.SetDefault("health.check_interval", d.Health.CheckInterval)
	v.SetDefault("health.storage_warning_threshold", d.Health.StorageWarningThreshold)
	v.SetDefault("health.storage_error_threshold", d.Health.StorageErrorThreshold)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Validate checks the settings needed to talk to slskd.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Slskd.Host) == "" {
		errs = append(errs, errors.New("slskd.host is required"))
	}
	if c.Slskd.Port < 1 || c.Slskd.Port > 65535 {
		errs = append(errs, fmt.Errorf("slskd.port %d is out of range", c.Slskd.Port))
	}
	if strings.TrimSpace(c.Slskd.APIKey) == "" {
		errs = append(errs, errors.New("slskd.api_key is required"))
	}
	if _, err := identity.ParseScheme(c.Queue.IdentifierScheme); err != nil {
		errs = append(errs, fmt.Errorf("queue.identifier_scheme: %w", err))
	}
	if c.Queue.RemovePollInterval < 100*time.Millisecond {
		errs = append(errs, errors.New("queue.remove_poll_interval must be at least 100ms"))
	}
	if c.Queue.RemoveWaitTimeout < c.Queue.RemovePollInterval {
		errs = append(errs, errors.New("queue.remove_wait_timeout must not be shorter than queue.remove_poll_interval"))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, errors.New("queue.concurrency must be at least 1"))
	}
	if c.Search.MinPeerUploadSpeed < 0 {
		errs = append(errs, errors.New("search.min_peer_upload_speed must not be negative"))
	}
	warn, crit := c.Health.StorageWarningThreshold, c.Health.StorageErrorThreshold
	if warn < 0 || warn >= 1 || crit < 0 || crit >= 1 {
		errs = append(errs, errors.New("health storage thresholds must be fractions between 0 and 1"))
	} else if warn > 0 && crit > warn {
		errs = append(errs, errors.New("health.storage_error_threshold must not exceed health.storage_warning_threshold"))
	}
	return errors.Join(errs...)
}

// ClientConfig converts the slskd section for the download client.
func (c *SlskdConfig) ClientConfig() *types.ClientConfig {
	return &types.ClientConfig{
		Host:    c.Host,
		Port:    c.Port,
		UseSSL:  c.UseSSL,
		URLBase: c.URLBase,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
	}
}

// IsLocalhost reports whether slskd runs on this machine, so its download
// folders can be inspected directly.
func (c *SlskdConfig) IsLocalhost() bool {
	host := strings.ToLower(strings.Trim(strings.TrimSpace(c.Host), "[]"))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Scheme returns the configured identifier scheme.
func (c *QueueConfig) Scheme() (identity.Scheme, error) {
	return identity.ParseScheme(c.IdentifierScheme)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Watcher reloads the config file when it changes and notifies listeners.
type Watcher struct {
	v      *viper.Viper
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)
}

// LoadAndWatch loads configuration and starts watching the config file, if
// one was found.
func LoadAndWatch(configPath string, logger zerolog.Logger) (*Watcher, error) {
	cfg, v, err := load(configPath)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		v:       v,
		logger:  logger.With().Str("component", "config").Logger(),
		current: cfg,
	}
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(w.onChange)
		v.WatchConfig()
	}
	return w, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a callback invoked after a successful reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Watcher) onChange(e fsnotify.Event) {
	w.logger.Info().Str("file", e.Name).Msg("Config file changed")

	cfg := &Config{}
	if err := w.v.Unmarshal(cfg); err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload configuration")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error().Err(err).Msg("Reloaded configuration is invalid, keeping previous")
		return
	}

	w.mu.Lock()
	w.current = cfg
	listeners := append([]func(*Config){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

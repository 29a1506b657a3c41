package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bookarr/bookarr/internal/models"
)

// IndexerConfig configures one search source
type IndexerConfig struct {
	Name           string          `mapstructure:"name"`
	URL            string          `mapstructure:"url"`
	APIKey         string          `mapstructure:"api_key"`
	Protocol       models.Protocol `mapstructure:"protocol"`
	Priority       int             `mapstructure:"priority"`
	Tags           []int           `mapstructure:"tags"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Enabled        bool            `mapstructure:"enabled"`
}

// DownloadClientConfig configures one download client
type DownloadClientConfig struct {
	Name     string          `mapstructure:"name"`
	URL      string          `mapstructure:"url"`
	APIKey   string          `mapstructure:"api_key"`
	Protocol models.Protocol `mapstructure:"protocol"`
}

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort string

	// Logging
	LogLevel string
	LogJSON  bool

	// Paths
	DatabaseFile string

	// Decision knobs. Defaults mirror the long-observed behavior; they are
	// configuration rather than constants.
	GrabWindow             time.Duration // don't re-grab while a grab this recent is in flight
	BlocklistSizeTolerance int64         // bytes
	BlocklistDateTolerance time.Duration
	DownloadPropers        bool // auto-grab same-tier revision upgrades
	MonitoredOnly          bool

	// Scheduling
	PollInterval    time.Duration
	SearchInterval  time.Duration
	PendingInterval time.Duration

	Indexers        []IndexerConfig
	DownloadClients []DownloadClientConfig
}

// Load reads configuration from bookarr.yaml and the environment
func Load() (*Config, error) {
	viper.SetConfigName("bookarr")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "bookarr")
	}
	viper.AddConfigPath(configDir)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetDefault("server_port", "8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
	viper.SetDefault("grab_window_hours", 12)
	viper.SetDefault("blocklist_size_tolerance_mb", 2)
	viper.SetDefault("blocklist_date_tolerance_minutes", 2)
	viper.SetDefault("download_propers", true)
	viper.SetDefault("monitored_only", true)
	viper.SetDefault("poll_interval_minutes", 1)
	viper.SetDefault("search_interval_minutes", 30)
	viper.SetDefault("pending_interval_minutes", 15)

	// Config file is optional, env and defaults cover everything
	_ = viper.ReadInConfig()

	cfg := &Config{
		ServerPort:             viper.GetString("server_port"),
		LogLevel:               viper.GetString("log_level"),
		LogJSON:                viper.GetBool("log_json"),
		DatabaseFile:           filepath.Join(configDir, "bookarr.db"),
		GrabWindow:             time.Duration(viper.GetInt("grab_window_hours")) * time.Hour,
		BlocklistSizeTolerance: viper.GetInt64("blocklist_size_tolerance_mb") * 1024 * 1024,
		BlocklistDateTolerance: time.Duration(viper.GetInt("blocklist_date_tolerance_minutes")) * time.Minute,
		DownloadPropers:        viper.GetBool("download_propers"),
		MonitoredOnly:          viper.GetBool("monitored_only"),
		PollInterval:           time.Duration(viper.GetInt("poll_interval_minutes")) * time.Minute,
		SearchInterval:         time.Duration(viper.GetInt("search_interval_minutes")) * time.Minute,
		PendingInterval:        time.Duration(viper.GetInt("pending_interval_minutes")) * time.Minute,
	}

	if err := viper.UnmarshalKey("indexers", &cfg.Indexers); err != nil {
		return nil, fmt.Errorf("failed to parse indexers: %w", err)
	}
	if err := viper.UnmarshalKey("download_clients", &cfg.DownloadClients); err != nil {
		return nil, fmt.Errorf("failed to parse download clients: %w", err)
	}

	for i := range cfg.Indexers {
		if cfg.Indexers[i].TimeoutSeconds <= 0 {
			cfg.Indexers[i].TimeoutSeconds = 30
		}
	}

	return cfg, nil
}

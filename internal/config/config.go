package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	GinMode       string
	OpenAIAPIKey  string
	ListenAddr    string

	LogLevel  string
	LogFormat string

	TrackerA       TrackerConfig
	TrackerB       TrackerConfig
	TrackerTimeout time.Duration
	PollInterval   time.Duration
}

// TrackerConfig points a tracker adapter at its integration backend.
type TrackerConfig struct {
	BaseURL   string
	BrowseURL string
	Token     string
}

// Enabled reports whether the tracker has a backend configured.
func (t TrackerConfig) Enabled() bool {
	return t.BaseURL != ""
}

var defaults = map[string]any{
	"db_driver":            "mysql",
	"db_host":              "localhost",
	"db_port":              "3306",
	"db_user":              "taskuser",
	"db_password":          "taskpassword",
	"db_name":              "task_management",
	"redis_host":           "localhost",
	"redis_port":           "6379",
	"session_secret":       "default-secret-key-change-me",
	"gin_mode":             "debug",
	"openai_api_key":       "",
	"listen_addr":          ":8080",
	"log_level":            "info",
	"log_format":           "json",
	"tracker_a_base_url":   "",
	"tracker_a_browse_url": "",
	"tracker_a_token":      "",
	"tracker_b_base_url":   "",
	"tracker_b_token":      "",
	"tracker_timeout":      "15s",
	"poll_interval":        "5m",
}

// Load reads configuration from the environment and, when path is non-empty,
// from a YAML/TOML/JSON file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DBDriver:      strings.ToLower(v.GetString("db_driver")),
		DBHost:        v.GetString("db_host"),
		DBPort:        v.GetString("db_port"),
		DBUser:        v.GetString("db_user"),
		DBPassword:    v.GetString("db_password"),
		DBName:        v.GetString("db_name"),
		RedisHost:     v.GetString("redis_host"),
		RedisPort:     v.GetString("redis_port"),
		SessionSecret: v.GetString("session_secret"),
		GinMode:       v.GetString("gin_mode"),
		OpenAIAPIKey:  v.GetString("openai_api_key"),
		ListenAddr:    v.GetString("listen_addr"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		TrackerA: TrackerConfig{
			BaseURL:   strings.TrimRight(v.GetString("tracker_a_base_url"), "/"),
			BrowseURL: strings.TrimRight(v.GetString("tracker_a_browse_url"), "/"),
			Token:     v.GetString("tracker_a_token"),
		},
		TrackerB: TrackerConfig{
			BaseURL: strings.TrimRight(v.GetString("tracker_b_base_url"), "/"),
			Token:   v.GetString("tracker_b_token"),
		},
		TrackerTimeout: v.GetDuration("tracker_timeout"),
		PollInterval:   v.GetDuration("poll_interval"),
	}

	switch cfg.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.TrackerTimeout <= 0 {
		return nil, fmt.Errorf("TRACKER_TIMEOUT must be positive")
	}

	return cfg, nil
}

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the storebot backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Fulfillment FulfillmentConfig `mapstructure:"fulfillment"`
	Referral    ReferralConfig    `mapstructure:"referral"`
	Sessions    SessionConfig     `mapstructure:"sessions"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP reports/ops server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// TelegramConfig holds Bot API credentials and the fulfillment channel.
type TelegramConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Token     string        `mapstructure:"token"`
	ChannelID string        `mapstructure:"channel_id"`
	APIBase   string        `mapstructure:"api_base"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// FulfillmentConfig drives the background worker schedules and thresholds.
//
// Schedules are cron specs (robfig/cron, @every syntax included); thresholds
// and windows are durations.
type FulfillmentConfig struct {
	InviteSchedule string `mapstructure:"invite_schedule"`
	ReapSchedule   string `mapstructure:"reap_schedule"`
	SweepSchedule  string `mapstructure:"sweep_schedule"`

	InviteExpiry      time.Duration `mapstructure:"invite_expiry"`
	CartIdleThreshold time.Duration `mapstructure:"cart_idle_threshold"`
}

// ReferralConfig bounds the referral graph traversals.
type ReferralConfig struct {
	MaxDepth     int `mapstructure:"max_depth"`
	ManagerDepth int `mapstructure:"manager_depth"`
	CodeLength   int `mapstructure:"code_length"`
}

// SessionConfig configures the in-process conversation session cache.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MonitoringConfig enables the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("STOREBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/storebot.sqlite")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")

	v.SetDefault("fulfillment.invite_schedule", "@every 60s")
	v.SetDefault("fulfillment.reap_schedule", "@every 60m")
	v.SetDefault("fulfillment.sweep_schedule", "@every 2m")
	v.SetDefault("fulfillment.invite_expiry", "24h")
	v.SetDefault("fulfillment.cart_idle_threshold", "24h")

	v.SetDefault("referral.max_depth", 10)
	v.SetDefault("referral.manager_depth", 5)
	v.SetDefault("referral.code_length", 8)

	v.SetDefault("sessions.ttl", "30m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

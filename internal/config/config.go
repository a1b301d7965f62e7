package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the
// backfill driver.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NatsURL          string
	JWTSecret        string
	ChannelBase      string
	SSEKeepAlive     time.Duration
	AtRiskThreshold  float64
	WarningThreshold float64
	StreakThreshold  int
	AttendanceWindow int
	BackfillPageSize int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional
// .env file. The JWT secret is required; the API cannot authenticate without
// it.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

// LoadBatch reads configuration for the backfill driver, which talks straight
// to the database and never authenticates HTTP requests.
func LoadBatch() (Config, error) {
	return load()
}

func load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDULOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EduLog Alerts API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "edulog")
	v.SetDefault("sse.keepalive", "25s")
	v.SetDefault("thresholds.at_risk", 70.0)
	v.SetDefault("thresholds.warning", 75.0)
	v.SetDefault("streak.threshold", 3)
	v.SetDefault("attendance.window", 5)
	v.SetDefault("backfill.page_size", 200)

	keepAliveString := v.GetString("sse.keepalive")
	if keepAliveString == "" {
		keepAliveString = "25s"
	}

	keepAlive, err := time.ParseDuration(keepAliveString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sse keepalive: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NatsURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		ChannelBase:      v.GetString("channel.base"),
		SSEKeepAlive:     keepAlive,
		AtRiskThreshold:  v.GetFloat64("thresholds.at_risk"),
		WarningThreshold: v.GetFloat64("thresholds.warning"),
		StreakThreshold:  v.GetInt("streak.threshold"),
		AttendanceWindow: v.GetInt("attendance.window"),
		BackfillPageSize: v.GetInt("backfill.page_size"),
	}

	if cfg.AtRiskThreshold <= 0 {
		cfg.AtRiskThreshold = 70
	}

	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 75
	}

	if cfg.StreakThreshold <= 0 {
		cfg.StreakThreshold = 3
	}

	if cfg.AttendanceWindow <= 0 {
		cfg.AttendanceWindow = 5
	}

	if cfg.BackfillPageSize <= 0 {
		cfg.BackfillPageSize = 200
	}

	return cfg, nil
}

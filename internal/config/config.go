package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken     string        `envconfig:"BOT_TOKEN" required:"true"`
	DBPath       string        `envconfig:"DB_PATH" default:"./data/runready.db"`
	DefaultTZ    string        `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"` // run times are entered and shown in this zone
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`           // debug|info|warn|error
	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"`          // /healthz and /metrics
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	DueBatch     int           `envconfig:"DUE_BATCH" default:"100"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves DefaultTZ, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

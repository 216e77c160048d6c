package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuihairu/gamelib/internal/objstore"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"console", "text", "json"}
	validEvents  = []string{"", "noop", "none", "memory", "redis", "kafka"}
	validDrivers = []string{"", "sqlite", "sqlite3", "postgres", "postgresql", "pgx"}
)

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var errs []error
	switch strings.ToLower(cfg.Repository) {
	case "memory", "mem", "database", "db", "persistent":
	default:
		errs = append(errs, fmt.Errorf("repository: unknown kind %q", cfg.Repository))
	}
	if !oneOf(cfg.Database.Driver, validDrivers) {
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", cfg.Database.Driver))
	}
	if _, err := objstore.Parse(cfg.Data.Path); err != nil {
		errs = append(errs, fmt.Errorf("data.path: %w", err))
	}
	if !oneOf(cfg.Log.Level, validLevels) {
		errs = append(errs, fmt.Errorf("log.level: unknown %q", cfg.Log.Level))
	}
	if !oneOf(cfg.Log.Format, validFormats) {
		errs = append(errs, fmt.Errorf("log.format: unknown %q", cfg.Log.Format))
	}
	if !oneOf(cfg.Events.Type, validEvents) {
		errs = append(errs, fmt.Errorf("events.type: unknown %q", cfg.Events.Type))
	}
	switch strings.ToLower(cfg.Events.Type) {
	case "redis":
		if cfg.Events.RedisURL == "" {
			errs = append(errs, errors.New("events.redis_url: required for redis events"))
		}
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("events.kafka_brokers: required for kafka events"))
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint: required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

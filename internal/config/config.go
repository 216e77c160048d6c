// Package config loads gamelib settings from an optional file, include
// files, a named profile and GAMELIB_* environment variables, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/cuihairu/gamelib/internal/db"
	"github.com/cuihairu/gamelib/internal/events"
	"github.com/cuihairu/gamelib/internal/objstore"
	"github.com/cuihairu/gamelib/internal/telemetry"
	"github.com/spf13/viper"
)

const EnvPrefix = "GAMELIB"

type Config struct {
	Repository string           `mapstructure:"repository" yaml:"repository" json:"repository"`
	Database   Database         `mapstructure:"database" yaml:"database" json:"database"`
	Data       Data             `mapstructure:"data" yaml:"data" json:"data"`
	Log        Log              `mapstructure:"log" yaml:"log" json:"log"`
	Telemetry  telemetry.Config `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
	Events     events.Config    `mapstructure:"events" yaml:"events" json:"events"`
}

type Database struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	Echo   bool   `mapstructure:"echo" yaml:"echo" json:"echo"`
}

// DB converts to the opener's config.
func (d Database) DB() db.Config { return db.Config{Driver: d.Driver, DSN: d.DSN, Echo: d.Echo} }

type Data struct {
	// Path is a local file or a blob URL (file://, s3://, mem://).
	Path      string `mapstructure:"path" yaml:"path" json:"path"`
	Region    string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	PathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style" json:"force_path_style"`
}

// Store converts to the blob opener's config.
func (d Data) Store() objstore.Config {
	return objstore.Config{Region: d.Region, Endpoint: d.Endpoint, ForcePathStyle: d.PathStyle}
}

type Log struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// SetDefaults registers every key so that AutomaticEnv can override keys
// absent from the file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("repository", "memory")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.echo", false)
	v.SetDefault("data.path", "data/games.csv")
	v.SetDefault("data.region", "")
	v.SetDefault("data.endpoint", "")
	v.SetDefault("data.force_path_style", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", true)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "gamelib")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("events.type", "noop")
	v.SetDefault("events.redis_url", "")
	v.SetDefault("events.stream", "")
	v.SetDefault("events.max_len", 0)
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.topic", "")
}

// Options selects the sources Load reads.
type Options struct {
	File     string
	Includes []string
	Profile  string
}

// Load reads the configured sources into a viper instance and decodes it.
func Load(opts Options) (*Config, *viper.Viper, error) {
	v, err := LoadWithIncludes(opts.File, opts.Includes)
	if err != nil {
		return nil, nil, err
	}
	if opts.Profile != "" {
		if v, err = ApplyProfile(v, opts.Profile); err != nil {
			return nil, nil, err
		}
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// GAMELIB_EVENTS_KAFKA_BROKERS arrives as one comma separated string.
	if len(cfg.Events.KafkaBrokers) == 1 && strings.Contains(cfg.Events.KafkaBrokers[0], ",") {
		cfg.Events.KafkaBrokers = strings.Split(cfg.Events.KafkaBrokers[0], ",")
	}
	return &cfg, nil
}

// LoadWithIncludes reads base config and merges includes in order.
func LoadWithIncludes(base string, includes []string) (*viper.Viper, error) {
	v := viper.New()
	if base != "" {
		v.SetConfigFile(base)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", base, err)
		}
	}
	for _, inc := range includes {
		iv := viper.New()
		iv.SetConfigFile(inc)
		if err := iv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
		if err := v.MergeConfigMap(iv.AllSettings()); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
	}
	return v, nil
}

// mergeMaps recursively merges b into a.
func mergeMaps(a, b map[string]any) map[string]any {
	for k, vb := range b {
		if ma, ok := a[k].(map[string]any); ok {
			if mb, ok2 := vb.(map[string]any); ok2 {
				a[k] = mergeMaps(ma, mb)
				continue
			}
		}
		a[k] = vb
	}
	return a
}

// ApplyProfile overlays profiles.<name> on the top-level settings. A file
// with profiles.test.repository = database switches only that key.
func ApplyProfile(v *viper.Viper, profile string) (*viper.Viper, error) {
	prof := v.Sub("profiles")
	if prof == nil {
		return nil, fmt.Errorf("profiles not found in config")
	}
	p := prof.Sub(profile)
	if p == nil {
		return nil, fmt.Errorf("profile %s not found", profile)
	}
	base := v.AllSettings()
	delete(base, "profiles")
	nv := viper.New()
	if err := nv.MergeConfigMap(mergeMaps(base, p.AllSettings())); err != nil {
		return nil, err
	}
	return nv, nil
}

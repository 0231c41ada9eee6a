// Package config loads fractiz settings from defaults, an optional YAML file,
// and FRACTIZ_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/fractiz/internal/adaptation"
	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/rating"
)

// EnvPrefix prefixes every environment override, e.g. FRACTIZ_HTTP_ADDR.
const EnvPrefix = "FRACTIZ"

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config is the full application configuration.
type Config struct {
	Mastery    mastery.Config    `mapstructure:"mastery"`
	Adaptation adaptation.Config `mapstructure:"adaptation"`
	Rating     RatingConfig      `mapstructure:"rating"`
	Catalog    CatalogConfig     `mapstructure:"catalog"`
	Store      StoreConfig       `mapstructure:"store"`
	Lock       LockConfig        `mapstructure:"lock"`
	HTTP       HTTPConfig        `mapstructure:"http"`
	Session    SessionConfig     `mapstructure:"session"`
	Log        LogConfig         `mapstructure:"log"`
}

type RatingConfig struct {
	Titles rating.Titles `mapstructure:"titles"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// SQLitePath empty means the XDG data directory default.
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

type LockConfig struct {
	Driver        string        `mapstructure:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	MinBackoff    time.Duration `mapstructure:"min_backoff"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SessionConfig struct {
	RequireSession bool `mapstructure:"require_session"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mastery:    mastery.DefaultConfig(),
		Adaptation: adaptation.DefaultConfig(),
		Rating:     RatingConfig{Titles: rating.DefaultTitles()},
		Catalog:    CatalogConfig{Path: "question_bank.json"},
		Store:      StoreConfig{Driver: StoreSQLite, MaxConns: 10},
		Lock: LockConfig{
			Driver:     LockLocal,
			RedisAddr:  "localhost:6379",
			Prefix:     "fractiz:lock:",
			TTL:        10 * time.Second,
			MinBackoff: 5 * time.Millisecond,
			MaxBackoff: 200 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("mastery.strategy", d.Mastery.Strategy)
	v.SetDefault("mastery.bayesian.prior", d.Mastery.Bayesian.Prior)
	v.SetDefault("mastery.bayesian.learn", d.Mastery.Bayesian.Learn)
	v.SetDefault("mastery.bayesian.slip", d.Mastery.Bayesian.Slip)
	v.SetDefault("mastery.bayesian.guess", d.Mastery.Bayesian.Guess)
	v.SetDefault("mastery.heuristic.prior", d.Mastery.Heuristic.Prior)
	v.SetDefault("mastery.heuristic.learning_rate", d.Mastery.Heuristic.LearningRate)
	v.SetDefault("mastery.heuristic.penalty_rate", d.Mastery.Heuristic.PenaltyRate)

	v.SetDefault("adaptation.mastery_threshold", d.Adaptation.MasteryThreshold)
	v.SetDefault("adaptation.difficulty_bands", []float64(d.Adaptation.DifficultyBands))
	v.SetDefault("adaptation.min_difficulty", d.Adaptation.MinDifficulty)

	v.SetDefault("rating.titles.novice", d.Rating.Titles.Novice)
	v.SetDefault("rating.titles.explorer", d.Rating.Titles.Explorer)
	v.SetDefault("rating.titles.future_architect", d.Rating.Titles.FutureArchitect)
	v.SetDefault("rating.titles.master", d.Rating.Titles.Master)
	v.SetDefault("rating.titles.grand_master", d.Rating.Titles.GrandMaster)

	v.SetDefault("catalog.path", d.Catalog.Path)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.postgres_url", d.Store.PostgresURL)
	v.SetDefault("store.max_conns", d.Store.MaxConns)

	v.SetDefault("lock.driver", d.Lock.Driver)
	v.SetDefault("lock.redis_addr", d.Lock.RedisAddr)
	v.SetDefault("lock.redis_password", d.Lock.RedisPassword)
	v.SetDefault("lock.redis_db", d.Lock.RedisDB)
	v.SetDefault("lock.prefix", d.Lock.Prefix)
	v.SetDefault("lock.ttl", d.Lock.TTL)
	v.SetDefault("lock.min_backoff", d.Lock.MinBackoff)
	v.SetDefault("lock.max_backoff", d.Lock.MaxBackoff)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.allowed_origins", d.HTTP.AllowedOrigins)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("session.require_session", d.Session.RequireSession)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Load reads configuration. An explicit path must exist; with an empty path
// fractiz.yaml is looked up in the working directory and
// $XDG_CONFIG_HOME/fractiz, and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("fractiz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if err := c.Mastery.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Adaptation.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Driver {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("invalid config: store.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			return errors.New("invalid config: lock.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid config: unknown lock.driver %q", c.Lock.Driver)
	}

	if c.HTTP.Addr == "" {
		return errors.New("invalid config: http.addr is empty")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	return nil
}

// Ladder builds the title ladder from the configured labels.
func (c *Config) Ladder() rating.Ladder {
	return rating.NewLadder(c.Rating.Titles)
}

func configDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "fractiz"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "fractiz"), nil
}

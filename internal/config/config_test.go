package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/rating"
)

// isolate points config lookups at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fractiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, mastery.StrategyBayesian, cfg.Mastery.Strategy)
	assert.InDelta(t, 0.1, cfg.Mastery.Bayesian.Prior, 1e-12)
	assert.InDelta(t, 0.95, cfg.Adaptation.MasteryThreshold, 1e-12)
	assert.Equal(t, rating.Bands{0.4, 0.7}, cfg.Adaptation.DifficultyBands)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, LockLocal, cfg.Lock.Driver)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "grand master", cfg.Ladder().Title(25))
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
mastery:
  strategy: heuristic
  heuristic:
    learning_rate: 0.3
adaptation:
  difficulty_bands: [0.3, 0.6, 0.85]
rating:
  titles:
    novice: "người mới"
store:
  driver: memory
http:
  addr: "127.0.0.1:9000"
  allowed_origins: ["http://localhost:3000"]
  shutdown_timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, mastery.StrategyHeuristic, cfg.Mastery.Strategy)
	assert.InDelta(t, 0.3, cfg.Mastery.Heuristic.LearningRate, 1e-12)
	assert.InDelta(t, 0.15, cfg.Mastery.Heuristic.PenaltyRate, 1e-12, "unset keys keep defaults")
	assert.Equal(t, rating.Bands{0.3, 0.6, 0.85}, cfg.Adaptation.DifficultyBands)
	assert.Equal(t, "người mới", cfg.Ladder().Title(0))
	assert.Equal(t, "explorer", cfg.Ladder().Title(5))
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FRACTIZ_MASTERY_BAYESIAN_SLIP", "0.05")
	t.Setenv("FRACTIZ_STORE_DRIVER", "memory")
	t.Setenv("FRACTIZ_SESSION_REQUIRE_SESSION", "true")
	t.Setenv("FRACTIZ_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 0.05, cfg.Mastery.Bayesian.Slip, 1e-12)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.True(t, cfg.Session.RequireSession)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "mastery:\n  strategy: blended\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown mastery strategy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"postgres without url", func(c *Config) { c.Store.Driver = StorePostgres }, "postgres_url"},
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"redis without addr", func(c *Config) { c.Lock.Driver = LockRedis; c.Lock.RedisAddr = "" }, "redis_addr"},
		{"unknown lock", func(c *Config) { c.Lock.Driver = "etcd" }, "lock.driver"},
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad threshold", func(c *Config) { c.Adaptation.MasteryThreshold = 2 }, "mastery_threshold"},
		{"bad guess", func(c *Config) { c.Mastery.Bayesian.Guess = -0.1 }, "bayesian.guess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

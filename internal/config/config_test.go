package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/econcal/pkg/common"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 1, cfg.ChunkMonths)
	assert.Equal(t, 15*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.ScriptTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.ScrollSettle)
	assert.Equal(t, 2*time.Second, cfg.Stagger)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "forex_factory_data", cfg.Output.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.Equal(t, common.DefaultConfiguration(), cfg.Crawl())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ECONCAL_START", "2024-01-01")
	t.Setenv("ECONCAL_END", "2024-03-31")
	t.Setenv("ECONCAL_WORKERS", "5")
	t.Setenv("ECONCAL_POLITENESS", "250ms")
	t.Setenv("ECONCAL_OUTPUT_DIR", "/tmp/out")
	t.Setenv("ECONCAL_CLICKHOUSE_HOST", "ch.local")
	t.Setenv("ECONCAL_SENTRY_DSN", "https://key@sentry.local/1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Politeness)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.True(t, cfg.ClickHouse.Enabled())
	assert.Equal(t, "ch.local:9000", cfg.ClickHouse.Addr())
	assert.Equal(t, "https://key@sentry.local/1", cfg.Sentry.DSN)

	r, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, 91, r.NumDays())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ECONCAL_CHUNK_MONTHS=2\nECONCAL_LOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ECONCAL_CHUNK_MONTHS")
		os.Unsetenv("ECONCAL_LOG_FORMAT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ChunkMonths)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Start, cfg.End = "2024-01-01", "2024-01-31"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing dates", func(c *Config) { c.Start = "" }, common.ErrInvalidRange},
		{"reversed range", func(c *Config) { c.Start, c.End = c.End, c.Start }, common.ErrInvalidRange},
		{"no workers", func(c *Config) { c.Workers = 0 }, ErrInvalidConfig},
		{"no chunk months", func(c *Config) { c.ChunkMonths = 0 }, ErrInvalidConfig},
		{"negative stagger", func(c *Config) { c.Stagger = -time.Second }, ErrInvalidConfig},
		{"zero ready timeout", func(c *Config) { c.ReadyTimeout = 0 }, ErrInvalidConfig},
		{"zero navigation timeout", func(c *Config) { c.NavigationTimeout = 0 }, ErrInvalidConfig},
		{"negative script timeout", func(c *Config) { c.ScriptTimeout = -time.Second }, ErrInvalidConfig},
		{"bad progress mode", func(c *Config) { c.Progress = "fireworks" }, ErrInvalidConfig},
		{"clickhouse batch", func(c *Config) { c.ClickHouse.Host = "ch"; c.ClickHouse.BatchSize = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

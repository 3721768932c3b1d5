package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "15m", cfg.Polling.Window)
	assert.Equal(t, 6, cfg.Polling.RateWindowSize)
	assert.Equal(t, 12*time.Second, cfg.Polling.StalenessThreshold)
	assert.Equal(t, 0.5, cfg.Thresholds.Warning)
	assert.Equal(t, 0.7, cfg.Thresholds.Critical)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DW_POLL_INTERVAL", "10s")
	t.Setenv("DW_DRIFT_WARNING", "0.4")
	t.Setenv("DW_SCORING_URL", "http://scoring.internal:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 0.4, cfg.Thresholds.Warning)
	assert.Equal(t, "http://scoring.internal:8000", cfg.Integrations.Scoring.URL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: 127.0.0.1:9999
polling:
  interval: 2s
  window: 30m
thresholds:
  warning: 0.3
  critical: 0.6
integrations:
  prometheus:
    url: http://prom:9090
    timeout: 3s
  scoring:
    url: http://scoring:8000
    timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "30m", cfg.Polling.Window)
	assert.Equal(t, 0.3, cfg.Thresholds.Warning)
	assert.Equal(t, 0.6, cfg.Thresholds.Critical)
	require.NoError(t, cfg.Validate())

	t.Run("env wins over file", func(t *testing.T) {
		t.Setenv("DW_POLL_WINDOW", "1h")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "1h", cfg.Polling.Window)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "warning above critical",
			mutate:  func(c *Config) { c.Thresholds.Warning = 0.9; c.Thresholds.Critical = 0.7 },
			wantErr: "thresholds.warning",
		},
		{
			name:    "equal thresholds allowed",
			mutate:  func(c *Config) { c.Thresholds.Warning = 0.7; c.Thresholds.Critical = 0.7 },
			wantErr: "",
		},
		{
			name:    "bad poll window",
			mutate:  func(c *Config) { c.Polling.Window = "fifteen minutes" },
			wantErr: "polling.window",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Polling.Interval = 0 },
			wantErr: "polling.interval",
		},
		{
			name:    "zero rate window",
			mutate:  func(c *Config) { c.Polling.RateWindowSize = 0 },
			wantErr: "rate_window_size",
		},
		{
			name:    "missing scoring url",
			mutate:  func(c *Config) { c.Integrations.Scoring.URL = "" },
			wantErr: "integrations.scoring.url",
		},
		{
			name:    "bad prometheus timeout",
			mutate:  func(c *Config) { c.Integrations.Prometheus.Timeout = "soon" },
			wantErr: "integrations.prometheus.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

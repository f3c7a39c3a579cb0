package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"TrendScreener/internal/collector"
	"TrendScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"FORCE_REFRESH", "SCAN_WORKERS", "CACHE_ROOT", "SQLITE_PATH", "TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID", "HTTPS_PROXY", "METRICS_ADDR", "LOG_LEVEL", "CRON_DAILY", "RUN_ON_START",
}

// clearEnv blanks every override so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "1y", cfg.DataSource.Period)
	assert.Equal(t, "1d", cfg.DataSource.Interval)
	assert.Equal(t, collector.DefaultEMASpan, cfg.Indicators.EMASpan)
	assert.Equal(t, collector.DefaultParams, cfg.Indicators.Params)
	assert.Equal(t, runtime.NumCPU(), cfg.Scan.Workers)
	assert.Equal(t, 30*time.Second, cfg.DataSource.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
data_source:
  start: "2023-01-01"
  end: "2024-01-01"
  interval: 1wk
  timeout: 10s
universe:
  file: nifty.csv
  suffix: .NS
indicators:
  ema_span: 8
  params:
    - {length: 7, multiplier: 1.5}
scan:
  workers: 3
  instrument_timeout: 45s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.DataSource.Period)
	assert.Equal(t, collector.Request{Start: "2023-01-01", End: "2024-01-01", Interval: "1wk"}, cfg.Request())
	assert.Equal(t, 10*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, ".NS", cfg.Universe.Suffix)
	assert.Equal(t, []model.ParameterSet{{Length: 7, Multiplier: 1.5}}, cfg.Indicators.Params)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, 45*time.Second, cfg.Scan.InstrumentTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FORCE_REFRESH", "true")
	t.Setenv("SCAN_WORKERS", "2")
	t.Setenv("CACHE_ROOT", "/tmp/c")
	t.Setenv("CRON_DAILY", "0 0 18 * * *")

	path := writeFile(t, "config.yaml", "cache:\n  root: ignored\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Scan.ForceRefresh)
	assert.Equal(t, 2, cfg.Scan.Workers)
	assert.Equal(t, "/tmp/c", cfg.Cache.Root)
	assert.Equal(t, "0 0 18 * * *", cfg.Schedule.DailyCron)
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCAN_WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("METRICS_ADDR")
	path := writeFile(t, ".env", "METRICS_ADDR=:9400\n")
	require.NoError(t, LoadEnv(path))
	t.Cleanup(func() { os.Unsetenv("METRICS_ADDR") })
	assert.Equal(t, ":9400", os.Getenv("METRICS_ADDR"))

	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.DataSource.Start = "2024-01-01"
	assert.ErrorIs(t, cfg.Validate(), collector.ErrInvalidRequest)

	cfg = base()
	cfg.Indicators.Params = []model.ParameterSet{{Length: 10, Multiplier: 1}, {Length: 10, Multiplier: 1}}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Indicators.Params = []model.ParameterSet{{Length: 0, Multiplier: 1}}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Telegram.BotToken = "t"
	assert.Error(t, cfg.Validate())
}

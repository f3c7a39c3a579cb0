package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"TrendScreener/internal/collector"
	"TrendScreener/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		Period     string        `yaml:"period"`
		Interval   string        `yaml:"interval"`
		Start      string        `yaml:"start"`
		End        string        `yaml:"end"`
		RatePerSec float64       `yaml:"rate_per_sec"`
		Burst      int           `yaml:"burst"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Universe struct {
		File   string `yaml:"file"`
		Suffix string `yaml:"suffix"`
	} `yaml:"universe"`
	Indicators struct {
		EMASpan int                  `yaml:"ema_span"`
		Params  []model.ParameterSet `yaml:"params"`
	} `yaml:"indicators"`
	Cache struct {
		Root    string `yaml:"root"`
		SaveCSV bool   `yaml:"save_csv"`
	} `yaml:"cache"`
	Scan struct {
		Workers           int           `yaml:"workers"`
		InstrumentTimeout time.Duration `yaml:"instrument_timeout"`
		ForceRefresh      bool          `yaml:"force_refresh"`
	} `yaml:"scan"`
	Logs struct {
		Dir string `yaml:"dir"`
	} `yaml:"logs"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// LoadEnv loads a .env file into the environment when one exists.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := map[string]*string{
		"CACHE_ROOT":         &c.Cache.Root,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
		"METRICS_ADDR":       &c.Metrics.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"CRON_DAILY":         &c.Schedule.DailyCron,
	}
	for key, dst := range setString {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setBool := map[string]*bool{
		"FORCE_REFRESH": &c.Scan.ForceRefresh,
		"RUN_ON_START":  &c.Schedule.RunOnStart,
	}
	for key, dst := range setBool {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCAN_WORKERS: %w", err)
		}
		c.Scan.Workers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Period == "" && c.DataSource.Start == "" && c.DataSource.End == "" {
		c.DataSource.Period = "1y"
	}
	if c.DataSource.Interval == "" {
		c.DataSource.Interval = "1d"
	}
	if c.DataSource.RatePerSec == 0 {
		c.DataSource.RatePerSec = 5
	}
	if c.DataSource.Burst == 0 {
		c.DataSource.Burst = 5
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.Universe.File == "" {
		c.Universe.File = "configs/universe.txt"
	}
	if c.Indicators.EMASpan == 0 {
		c.Indicators.EMASpan = collector.DefaultEMASpan
	}
	if len(c.Indicators.Params) == 0 {
		c.Indicators.Params = append([]model.ParameterSet(nil), collector.DefaultParams...)
	}
	if c.Cache.Root == "" {
		c.Cache.Root = "data/cache"
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = runtime.NumCPU()
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = "data/logs"
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/trend_screener.db"
	}
}

// Request builds the fetch request described by data_source.
func (c *Config) Request() collector.Request {
	return collector.Request{
		Period:   c.DataSource.Period,
		Start:    c.DataSource.Start,
		End:      c.DataSource.End,
		Interval: c.DataSource.Interval,
	}
}

// Validate checks that the configuration can drive a scan.
func (c *Config) Validate() error {
	if err := c.Request().Validate(); err != nil {
		return fmt.Errorf("data_source: %w", err)
	}
	if c.Indicators.EMASpan <= 0 {
		return fmt.Errorf("indicators.ema_span must be positive")
	}
	seen := make(map[string]bool)
	for _, p := range c.Indicators.Params {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("indicators.params: %w", err)
		}
		if seen[p.ID()] {
			return fmt.Errorf("indicators.params: duplicate %s", p.ID())
		}
		seen[p.ID()] = true
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative")
	}
	if c.DataSource.RatePerSec < 0 {
		return fmt.Errorf("data_source.rate_per_sec must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderYahoo  = "yahoo"
	ProviderAlpaca = "alpaca"
	ProviderMock   = "mock"
)

// Roster sources.
const (
	RosterWikipedia = "wikipedia"
	RosterStatic    = "static"
)

// Config holds all application configuration. Credentials are tagged
// yaml:"-" and only ever come from the environment.
type Config struct {
	DataSource struct {
		Provider        string        `yaml:"provider"`
		Proxy           string        `yaml:"proxy"`
		AlpacaKey       string        `yaml:"-"`
		AlpacaSecret    string        `yaml:"-"`
		BreakerFailures uint32        `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	} `yaml:"data_source"`
	Scan struct {
		Concurrency       int           `yaml:"concurrency"`
		TopN              int           `yaml:"top_n"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		RetryAttempts     int           `yaml:"retry_attempts"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
		Roster            string        `yaml:"roster"`
		RosterURL         string        `yaml:"roster_url"`
		Symbols           []string      `yaml:"symbols"`
	} `yaml:"scan"`
	Output struct {
		CSVPath     string `yaml:"csv_path"`
		SQLitePath  string `yaml:"sqlite_path"`
		MetricsPath string `yaml:"metrics_path"`
	} `yaml:"output"`
	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"-"`
		RedisDB       int           `yaml:"redis_db"`
		MarketCapTTL  time.Duration `yaml:"market_cap_ttl"`
	} `yaml:"cache"`
	Telegram struct {
		BotToken string `yaml:"-"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Logging struct {
		Level         string `yaml:"level"`
		Format        string `yaml:"format"`
		Dir           string `yaml:"dir"`
		RotationSize  int    `yaml:"rotation_size_mb"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"logging"`
}

// Load reads config from a YAML file, loads a .env file if present, then
// applies environment variable overrides and defaults.
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

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"ALPACA_API_KEY":     &c.DataSource.AlpacaKey,
		"ALPACA_API_SECRET":  &c.DataSource.AlpacaSecret,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"REDIS_PASSWORD":     &c.Cache.RedisPassword,
		"REDIS_ADDR":         &c.Cache.RedisAddr,
		"DIVSCAN_PROVIDER":   &c.DataSource.Provider,
		"HTTPS_PROXY":        &c.DataSource.Proxy,
		"DIVSCAN_CSV_PATH":   &c.Output.CSVPath,
		"SQLITE_PATH":        &c.Output.SQLitePath,
		"DIVSCAN_METRICS":    &c.Output.MetricsPath,
		"DIVSCAN_CRON":       &c.Schedule.Cron,
		"LOG_LEVEL":          &c.Logging.Level,
	}
	for k, p := range str {
		if v := os.Getenv(k); v != "" {
			*p = v
		}
	}

	ints := map[string]*int{
		"DIVSCAN_CONCURRENCY": &c.Scan.Concurrency,
		"DIVSCAN_TOP_N":       &c.Scan.TopN,
	}
	for k, p := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = n
		}
	}

	if v := os.Getenv("DIVSCAN_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DIVSCAN_RPS: %w", err)
		}
		c.Scan.RequestsPerSecond = f
	}
	if v := os.Getenv("DIVSCAN_SYMBOLS"); v != "" {
		c.Scan.Symbols = SplitSymbols(v)
		c.Scan.Roster = RosterStatic
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = ProviderYahoo
	}
	if c.DataSource.BreakerFailures == 0 {
		c.DataSource.BreakerFailures = 5
	}
	if c.DataSource.BreakerTimeout == 0 {
		c.DataSource.BreakerTimeout = 30 * time.Second
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 10
	}
	if c.Scan.TopN == 0 {
		c.Scan.TopN = 3
	}
	if c.Scan.RequestsPerSecond == 0 {
		c.Scan.RequestsPerSecond = 10
	}
	if c.Scan.Burst == 0 {
		c.Scan.Burst = 10
	}
	if c.Scan.RetryAttempts == 0 {
		c.Scan.RetryAttempts = 3
	}
	if c.Scan.RetryDelay == 0 {
		c.Scan.RetryDelay = 2 * time.Second
	}
	if c.Scan.Roster == "" {
		if len(c.Scan.Symbols) > 0 {
			c.Scan.Roster = RosterStatic
		} else {
			c.Scan.Roster = RosterWikipedia
		}
	}
	if c.Output.CSVPath == "" {
		c.Output.CSVPath = "results.csv"
	}
	if c.Cache.MarketCapTTL == 0 {
		c.Cache.MarketCapTTL = 24 * time.Hour
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 30 16 * * 1-5"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "pretty"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case ProviderYahoo, ProviderMock:
	case ProviderAlpaca:
		if c.DataSource.AlpacaKey == "" || c.DataSource.AlpacaSecret == "" {
			return fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET are required for provider %q", ProviderAlpaca)
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}

	switch c.Scan.Roster {
	case RosterWikipedia:
	case RosterStatic:
		if len(c.Scan.Symbols) == 0 {
			return fmt.Errorf("scan.symbols is required for roster %q", RosterStatic)
		}
	default:
		return fmt.Errorf("scan.roster %q is not supported", c.Scan.Roster)
	}

	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if c.Scan.TopN < 1 {
		return fmt.Errorf("scan.top_n must be positive")
	}
	if c.Scan.RetryAttempts < 1 {
		return fmt.Errorf("scan.retry_attempts must be positive")
	}
	if c.Scan.RequestsPerSecond < 0 {
		return fmt.Errorf("scan.requests_per_second must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram needs both TELEGRAM_BOT_TOKEN and telegram.chat_id")
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// SplitSymbols parses a comma or whitespace separated symbol list.
func SplitSymbols(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

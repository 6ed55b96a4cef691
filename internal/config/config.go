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

// DefaultPath is used when neither --config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Preset string `yaml:"preset"`
	Log    struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Tickers struct {
		Source    string   `yaml:"source"` // sheet | static
		SheetURL  string   `yaml:"sheet_url"`
		Watchlist []string `yaml:"watchlist"`
		Max       int      `yaml:"max"`
	} `yaml:"tickers"`
	DataSource struct {
		Provider      string        `yaml:"provider"` // twelvedata | polygon | mock
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		PolygonAPIKey string        `yaml:"polygon_api_key"`
		Timeout       time.Duration `yaml:"timeout"`
		MockPrice     float64       `yaml:"mock_price"`
	} `yaml:"data_source"`
	Scan struct {
		Interval        time.Duration `yaml:"interval"`
		RunOnStart      bool          `yaml:"run_on_start"`
		Window          WindowConfig  `yaml:"window"`
		BatchSize       int           `yaml:"batch_size"`
		BatchDelay      time.Duration `yaml:"batch_delay"`
		Concurrency     int           `yaml:"concurrency"`
		PrimaryInterval string        `yaml:"primary_interval"`
		PrimaryCount    int           `yaml:"primary_count"`
		ConfirmInterval string        `yaml:"confirm_interval"`
		ConfirmCount    int           `yaml:"confirm_count"`
		FetchTimeout    time.Duration `yaml:"fetch_timeout"`
		NotifyTimeout   time.Duration `yaml:"notify_timeout"`
	} `yaml:"scan"`
	Strategy StrategyConfig `yaml:"strategy"`
	Notify   struct {
		Channels []string      `yaml:"channels"` // discord, telegram, log
		Title    string        `yaml:"title"`
		ValidFor string        `yaml:"valid_for"`
		Timeout  time.Duration `yaml:"timeout"`
		Discord  struct {
			WebhookURL string `yaml:"webhook_url"`
		} `yaml:"discord"`
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
			Commands bool   `yaml:"commands"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
	Cooldown struct {
		Backend string        `yaml:"backend"` // none | memory | redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cooldown"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		JournalDir string `yaml:"journal_dir"`
		StateFile  string `yaml:"state_file"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// WindowConfig is the daily scan window.
type WindowConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ResolvePath picks the config file: explicit flag, then CONFIG_PATH, then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file on top of the selected preset, then
// applies environment variable overrides and defaults. A missing file is allowed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// The preset seeds the strategy before the file's own keys are applied.
	var head struct {
		Preset string `yaml:"preset"`
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if v := os.Getenv("PRESET"); v != "" {
		head.Preset = v
	}
	if head.Preset == "" {
		head.Preset = "default"
	}
	preset, ok := LookupPreset(head.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", head.Preset, strings.Join(PresetNames(), ", "))
	}

	cfg := &Config{Preset: preset.Name, Strategy: preset.Strategy}
	cfg.Scan.PrimaryInterval = preset.PrimaryInterval
	cfg.Scan.ConfirmInterval = preset.ConfirmInterval
	cfg.Scan.Window.Enabled = true

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Preset = preset.Name

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"TWELVE_DATA_API_KEY": &c.DataSource.APIKey,
		"POLYGON_API_KEY":     &c.DataSource.PolygonAPIKey,
		"DATA_PROVIDER":       &c.DataSource.Provider,
		"DISCORD_WEBHOOK_URL": &c.Notify.Discord.WebhookURL,
		"TELEGRAM_BOT_TOKEN":  &c.Notify.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":    &c.Notify.Telegram.ChatID,
		"SHEET_URL":           &c.Tickers.SheetURL,
		"REDIS_ADDR":          &c.Cooldown.Redis.Addr,
		"REDIS_PASSWORD":      &c.Cooldown.Redis.Password,
		"SQLITE_PATH":         &c.Database.SQLitePath,
		"HTTP_ADDR":           &c.HTTP.Addr,
		"LOG_LEVEL":           &c.Log.Level,
		"HTTPS_PROXY":         &c.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Tickers.Watchlist = strings.Split(v, ",")
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCAN_INTERVAL: %w", err)
		}
		c.Scan.Interval = d
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Scan.RunOnStart = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Tickers.Source == "" {
		c.Tickers.Source = "sheet"
		if c.Tickers.SheetURL == "" && len(c.Tickers.Watchlist) > 0 {
			c.Tickers.Source = "static"
		}
	}
	if c.Tickers.Max == 0 {
		c.Tickers.Max = 20
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "twelvedata"
	}
	if c.DataSource.BaseURL == "" {
		c.DataSource.BaseURL = "https://api.twelvedata.com"
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 15 * time.Second
	}
	if c.DataSource.MockPrice == 0 {
		c.DataSource.MockPrice = 5
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = 5 * time.Minute
	}
	w := &c.Scan.Window
	if w.Start == "" {
		w.Start = "09:15"
	}
	if w.End == "" {
		w.End = "10:30"
	}
	if w.Timezone == "" {
		w.Timezone = "America/Los_Angeles"
	}
	if c.Scan.BatchSize == 0 {
		c.Scan.BatchSize = 4
	}
	if c.Scan.BatchDelay == 0 {
		c.Scan.BatchDelay = 60 * time.Second
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 1
	}
	if c.Scan.PrimaryInterval == "" {
		c.Scan.PrimaryInterval = "1min"
	}
	if c.Scan.PrimaryCount == 0 {
		c.Scan.PrimaryCount = 6
	}
	if c.Scan.ConfirmInterval == "" {
		c.Scan.ConfirmInterval = "5min"
	}
	if c.Scan.ConfirmCount == 0 {
		c.Scan.ConfirmCount = 3
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = c.DataSource.Timeout
	}
	if c.Scan.NotifyTimeout == 0 {
		c.Scan.NotifyTimeout = 10 * time.Second
	}
	if c.Notify.Title == "" {
		c.Notify.Title = "ALWX"
	}
	if c.Notify.ValidFor == "" {
		c.Notify.ValidFor = "1–2 minutes"
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if len(c.Notify.Channels) == 0 {
		if c.Notify.Discord.WebhookURL != "" {
			c.Notify.Channels = append(c.Notify.Channels, "discord")
		}
		if c.Notify.Telegram.BotToken != "" {
			c.Notify.Channels = append(c.Notify.Channels, "telegram")
		}
		if len(c.Notify.Channels) == 0 {
			c.Notify.Channels = []string{"log"}
		}
	}
	if c.Cooldown.Backend == "" {
		c.Cooldown.Backend = "none"
		if c.Cooldown.Redis.Addr != "" && c.Cooldown.TTL > 0 {
			c.Cooldown.Backend = "redis"
		}
	}
	if c.Cooldown.TTL == 0 {
		c.Cooldown.TTL = 15 * time.Minute
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Tickers.Source {
	case "sheet":
		if c.Tickers.SheetURL == "" {
			return fmt.Errorf("tickers.sheet_url (SHEET_URL) is required for the sheet source")
		}
	case "static":
		if len(c.Tickers.Watchlist) == 0 {
			return fmt.Errorf("tickers.watchlist is required for the static source")
		}
	default:
		return fmt.Errorf("unknown tickers.source %q", c.Tickers.Source)
	}

	switch c.DataSource.Provider {
	case "twelvedata":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key (TWELVE_DATA_API_KEY) is required")
		}
	case "polygon":
		if c.DataSource.PolygonAPIKey == "" {
			return fmt.Errorf("data_source.polygon_api_key (POLYGON_API_KEY) is required")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}

	if c.Scan.Window.Enabled {
		if _, err := time.LoadLocation(c.Scan.Window.Timezone); err != nil {
			return fmt.Errorf("scan.window.timezone: %w", err)
		}
	}
	if c.Scan.Interval < time.Second {
		return fmt.Errorf("scan.interval must be at least 1s")
	}

	for _, ch := range c.Notify.Channels {
		switch ch {
		case "discord":
			if c.Notify.Discord.WebhookURL == "" {
				return fmt.Errorf("notify.discord.webhook_url (DISCORD_WEBHOOK_URL) is required")
			}
		case "telegram":
			if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
				return fmt.Errorf("notify.telegram bot_token and chat_id are required")
			}
		case "log":
		default:
			return fmt.Errorf("unknown notify channel %q", ch)
		}
	}

	switch c.Cooldown.Backend {
	case "none", "memory":
	case "redis":
		if c.Cooldown.Redis.Addr == "" {
			return fmt.Errorf("cooldown.redis.addr (REDIS_ADDR) is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cooldown.backend %q", c.Cooldown.Backend)
	}

	if err := c.Strategy.ToStrategy().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if _, err := c.ScannerOptions(); err != nil {
		return err
	}
	return nil
}

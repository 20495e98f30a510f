package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/model"
)

// Duration reads Go duration strings ("60s", "48h") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) { return time.Duration(d).String(), nil }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration. It is read-only once loaded.
type Config struct {
	Broker struct {
		Name      string `yaml:"name"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"broker"`
	Trading struct {
		Symbols         []string `yaml:"symbols"`
		InitialBalance  float64  `yaml:"initial_balance"`
		RiskPerTrade    float64  `yaml:"risk_per_trade"`   // percent
		DailyRiskLimit  float64  `yaml:"daily_risk_limit"` // percent
		RiskRewardRatio float64  `yaml:"risk_reward_ratio"`
		StopLossPct     float64  `yaml:"stop_loss_pct"`
		TimeBasedExit   Duration `yaml:"time_based_exit"`
		PollingInterval Duration `yaml:"polling_interval"`
		ErrorBackoff    Duration `yaml:"error_backoff"`
		Timeframe       string   `yaml:"timeframe"`
		Lookback        Duration `yaml:"lookback"`
		DailyResetCron  string   `yaml:"daily_reset_cron"`
	} `yaml:"trading"`
	Strategy struct {
		ShortWindow   int     `yaml:"short_window"`
		LongWindow    int     `yaml:"long_window"`
		RSIWindow     int     `yaml:"rsi_window"`
		RSIOverbought float64 `yaml:"rsi_overbought"`
		RSIOversold   float64 `yaml:"rsi_oversold"`
	} `yaml:"strategy"`
	DataSources struct {
		Order              []string `yaml:"order"`
		FinnhubAPIKey      string   `yaml:"finnhub_api_key"`
		AlphaVantageAPIKey string   `yaml:"alphavantage_api_key"`
		BinanceBaseURL     string   `yaml:"binance_base_url"`
		Timeout            Duration `yaml:"timeout"`
	} `yaml:"data_sources"`
	Events struct {
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"events"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		DailySummaryCron string `yaml:"daily_summary_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
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

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Broker.Name, "BROKER")
	setString(&c.Broker.APIKey, "ALPACA_API_KEY_ID")
	setString(&c.Broker.APISecret, "ALPACA_API_SECRET_KEY")
	setString(&c.Broker.BaseURL, "ALPACA_BASE_URL")
	setString(&c.DataSources.FinnhubAPIKey, "FINNHUB_API_KEY")
	setString(&c.DataSources.AlphaVantageAPIKey, "ALPHAVANTAGE_API_KEY")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Proxy, "HTTPS_PROXY")

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Trading.Symbols = splitList(v)
	}
	if v := os.Getenv("DATA_SOURCES"); v != "" {
		c.DataSources.Order = splitList(v)
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.InitialBalance = f
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	t := &c.Trading
	if c.Broker.Name == "" {
		c.Broker.Name = "paper"
	}
	if len(t.Symbols) == 0 {
		t.Symbols = []string{"AAPL", "TSLA"}
	}
	for i, s := range t.Symbols {
		t.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if t.InitialBalance == 0 {
		t.InitialBalance = 10000
	}
	if t.RiskPerTrade == 0 {
		t.RiskPerTrade = 1
	}
	if t.DailyRiskLimit == 0 {
		t.DailyRiskLimit = 5
	}
	if t.RiskRewardRatio == 0 {
		t.RiskRewardRatio = 2
	}
	if t.StopLossPct == 0 {
		t.StopLossPct = 2
	}
	if t.TimeBasedExit == 0 {
		t.TimeBasedExit = Duration(24 * time.Hour)
	}
	if t.PollingInterval == 0 {
		t.PollingInterval = Duration(60 * time.Second)
	}
	if t.ErrorBackoff == 0 {
		t.ErrorBackoff = Duration(10 * time.Second)
	}
	if t.Timeframe == "" {
		t.Timeframe = string(model.Timeframe1D)
	}
	if t.Lookback == 0 {
		t.Lookback = Duration(120 * 24 * time.Hour)
	}
	if t.DailyResetCron == "" {
		t.DailyResetCron = "0 0 * * *"
	}

	s := &c.Strategy
	if s.ShortWindow == 0 {
		s.ShortWindow = 20
	}
	if s.LongWindow == 0 {
		s.LongWindow = 50
	}
	if s.RSIWindow == 0 {
		s.RSIWindow = 14
	}
	if s.RSIOverbought == 0 {
		s.RSIOverbought = 70
	}
	if s.RSIOversold == 0 {
		s.RSIOversold = 30
	}

	if len(c.DataSources.Order) == 0 {
		c.DataSources.Order = []string{"yahoo"}
	}
	if c.DataSources.Timeout == 0 {
		c.DataSources.Timeout = Duration(30 * time.Second)
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 1024
	}
	if c.Schedule.DailySummaryCron == "" {
		c.Schedule.DailySummaryCron = "0 0 22 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/trade_sentinel.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks ranges and cross-field constraints. Errors are *model.ConfigError.
func (c *Config) Validate() error {
	t := c.Trading
	switch {
	case len(t.Symbols) == 0:
		return &model.ConfigError{Field: "trading.symbols", Reason: "at least one symbol is required"}
	case t.InitialBalance <= 0:
		return &model.ConfigError{Field: "trading.initial_balance", Reason: "must be positive"}
	case t.RiskPerTrade <= 0 || t.RiskPerTrade > 100:
		return &model.ConfigError{Field: "trading.risk_per_trade", Reason: "must be in (0, 100]"}
	case t.DailyRiskLimit <= 0 || t.DailyRiskLimit > 100:
		return &model.ConfigError{Field: "trading.daily_risk_limit", Reason: "must be in (0, 100]"}
	case t.RiskRewardRatio <= 0:
		return &model.ConfigError{Field: "trading.risk_reward_ratio", Reason: "must be positive"}
	case t.StopLossPct <= 0 || t.StopLossPct >= 100:
		return &model.ConfigError{Field: "trading.stop_loss_pct", Reason: "must be in (0, 100)"}
	case t.TimeBasedExit < 0:
		return &model.ConfigError{Field: "trading.time_based_exit", Reason: "must not be negative"}
	case t.PollingInterval <= 0:
		return &model.ConfigError{Field: "trading.polling_interval", Reason: "must be positive"}
	case t.ErrorBackoff < 0:
		return &model.ConfigError{Field: "trading.error_backoff", Reason: "must not be negative"}
	case t.Lookback <= 0:
		return &model.ConfigError{Field: "trading.lookback", Reason: "must be positive"}
	case c.Strategy.ShortWindow >= c.Strategy.LongWindow:
		return &model.ConfigError{Field: "strategy", Reason: fmt.Sprintf("short_window (%d) must be less than long_window (%d)", c.Strategy.ShortWindow, c.Strategy.LongWindow)}
	case len(c.DataSources.Order) == 0:
		return &model.ConfigError{Field: "data_sources.order", Reason: "at least one provider is required"}
	case c.Events.BufferSize <= 0:
		return &model.ConfigError{Field: "events.buffer_size", Reason: "must be positive"}
	}
	if _, err := model.ParseTimeframe(t.Timeframe); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(t.DailyResetCron); err != nil {
		return &model.ConfigError{Field: "trading.daily_reset_cron", Reason: err.Error()}
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Schedule.DailySummaryCron); err != nil {
		return &model.ConfigError{Field: "schedule.daily_summary_cron", Reason: err.Error()}
	}
	return nil
}

// TelegramEnabled reports whether both bot token and chat id are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

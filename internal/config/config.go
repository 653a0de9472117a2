package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultSymbols is the universe screened when the config lists none.
var DefaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "XRPUSDT", "BCHUSDT", "LTCUSDT", "ADAUSDT", "ETCUSDT",
	"LINKUSDT", "TRXUSDT", "DOTUSDT", "DOGEUSDT", "SOLUSDT", "BNBUSDT", "UNIUSDT",
	"ICPUSDT", "AAVEUSDT", "FILUSDT", "XLMUSDT", "ATOMUSDT", "XTZUSDT",
}

// Config holds all application configuration.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `yaml:"log_json"`

	DataSource struct {
		Provider          string            `yaml:"provider" validate:"oneof=tradingview yahoo"`
		Endpoint          string            `yaml:"endpoint" validate:"required,url"`
		Exchange          string            `yaml:"exchange"`
		ContractSuffix    string            `yaml:"contract_suffix"`
		Currency          string            `yaml:"currency"`
		Resolution        string            `yaml:"resolution" validate:"required"`
		Bars              int               `yaml:"bars" validate:"gte=30"`
		Timeout           time.Duration     `yaml:"timeout" validate:"gt=0"`
		RequestsPerSecond float64           `yaml:"requests_per_second" validate:"gt=0"`
		Symbols           []string          `yaml:"symbols" validate:"min=2,dive,required"`
		SymbolMap         map[string]string `yaml:"symbol_map"`
		PricesPath        string            `yaml:"prices_path" validate:"required"`
	} `yaml:"data_source"`

	Screening struct {
		Workers     int    `yaml:"workers" validate:"gte=0"`
		ResultsPath string `yaml:"results_path" validate:"required"`
		SQLitePath  string `yaml:"sqlite_path"`
	} `yaml:"screening"`

	Schedule struct {
		PipelineCron string `yaml:"pipeline_cron" validate:"required"`
		RunOnStart   bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`

	Dashboard struct {
		Addr string `yaml:"addr" validate:"required,hostname_port"`
		TopN int    `yaml:"top_n" validate:"gt=0"`
	} `yaml:"dashboard"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`

	Email struct {
		Host     string   `yaml:"host"`
		Port     int      `yaml:"port" validate:"omitempty,gt=0,lt=65536"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from" validate:"omitempty,email"`
		To       []string `yaml:"to" validate:"dive,email"`
	} `yaml:"email"`

	Proxy string `yaml:"proxy" validate:"omitempty,url"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
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

	// Environment variable overrides
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		cfg.Email.To = strings.Split(v, ",")
	}
	if v := os.Getenv("PRICES_PATH"); v != "" {
		cfg.DataSource.PricesPath = v
	}
	if v := os.Getenv("RESULTS_PATH"); v != "" {
		cfg.Screening.ResultsPath = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Screening.SQLitePath = v
	}
	if v := os.Getenv("CRON_PIPELINE"); v != "" {
		cfg.Schedule.PipelineCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		cfg.Schedule.RunOnStart = v == "true"
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	ds := &cfg.DataSource
	if ds.Provider == "" {
		ds.Provider = "tradingview"
	}
	if ds.Endpoint == "" {
		if ds.Provider == "yahoo" {
			ds.Endpoint = "https://query1.finance.yahoo.com"
		} else {
			ds.Endpoint = "wss://data.tradingview.com/socket.io/websocket"
		}
	}
	if ds.Exchange == "" {
		ds.Exchange = "BITGET"
	}
	if ds.ContractSuffix == "" {
		ds.ContractSuffix = ".P"
	}
	if ds.Currency == "" {
		ds.Currency = "XTVCUSDT"
	}
	if ds.Resolution == "" {
		ds.Resolution = "60"
	}
	if ds.Bars == 0 {
		ds.Bars = 5000
	}
	if ds.Timeout == 0 {
		ds.Timeout = 15 * time.Second
	}
	if ds.RequestsPerSecond == 0 {
		ds.RequestsPerSecond = 0.5
	}
	if len(ds.Symbols) == 0 {
		ds.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if ds.PricesPath == "" {
		ds.PricesPath = "data/price_list.json"
	}
	if cfg.Screening.ResultsPath == "" {
		cfg.Screening.ResultsPath = "data/cointegrated_pairs.csv"
	}
	if cfg.Schedule.PipelineCron == "" {
		cfg.Schedule.PipelineCron = "0 0 */6 * * *"
	}
	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = "127.0.0.1:8080"
	}
	if cfg.Dashboard.TopN == 0 {
		cfg.Dashboard.TopN = 20
	}
	if cfg.Email.Port == 0 && cfg.Email.Host != "" {
		cfg.Email.Port = 587
	}
}

// Validate checks field constraints and the cron expression.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Email.Host != "" && (c.Email.From == "" || len(c.Email.To) == 0) {
		return fmt.Errorf("email.from and email.to are required when email.host is set")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Schedule.PipelineCron); err != nil {
		return fmt.Errorf("schedule.pipeline_cron: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether Telegram delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// EmailEnabled reports whether SMTP delivery is configured.
func (c *Config) EmailEnabled() bool {
	return c.Email.Host != "" && len(c.Email.To) > 0
}

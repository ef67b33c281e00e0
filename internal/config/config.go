package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the portfolio API.
// Non-secret values come from an optional yaml file with env overrides;
// secrets (JWT secret, news API key) come from the environment only.
type Config struct {
	Port         string `yaml:"port"`
	Environment  string `yaml:"environment"`
	DatabasePath string `yaml:"database_path"`

	// AllowShortSelling controls whether a sell may exceed the current
	// holding. When false, oversells fail with InsufficientHoldings.
	AllowShortSelling bool `yaml:"allow_short_selling"`

	Quotes    QuotesConfig    `yaml:"quotes"`
	News      NewsConfig      `yaml:"news"`
	Refresher RefresherConfig `yaml:"refresher"`

	JWTSecret string `yaml:"-"`
}

type QuotesConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type NewsConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

type RefresherConfig struct {
	Interval time.Duration `yaml:"interval"`
	Symbols  []string      `yaml:"symbols"`
}

// CommonSymbols is the default tracked universe for the stocks cache.
var CommonSymbols = []string{
	"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "BRK-B", "JNJ", "JPM", "V",
	"PG", "UNH", "MA", "HD", "DIS", "BAC", "ADBE", "CRM", "CMCSA", "XOM",
	"NFLX", "VZ", "CSCO", "PEP", "INTC", "ABT", "KO", "MRK", "NVDA", "WMT",
}

func defaults() Config {
	return Config{
		Port:              "8080",
		Environment:       "development",
		DatabasePath:      "portfolio.db",
		AllowShortSelling: true,
		Quotes: QuotesConfig{
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: 5 * time.Second,
		},
		News: NewsConfig{
			BaseURL: "https://www.alphavantage.co",
		},
		Refresher: RefresherConfig{
			Interval: 15 * time.Minute,
			Symbols:  CommonSymbols,
		},
	}
}

// Load builds the configuration from defaults, an optional yaml file
// and environment variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("QUOTE_PROVIDER_URL"); v != "" {
		cfg.Quotes.BaseURL = v
	}
	if v := os.Getenv("QUOTE_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Quotes.Timeout = d
		}
	}
	if v := os.Getenv("NEWS_PROVIDER_URL"); v != "" {
		cfg.News.BaseURL = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.News.APIKey = v
	}
	if v := os.Getenv("ALLOW_SHORT_SELLING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowShortSelling = b
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresher.Interval = d
		}
	}
}

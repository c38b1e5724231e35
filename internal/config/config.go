// Package config loads the reporter configuration from environment
// variables and an optional YAML file. Environment variables take
// precedence. The default instrument basket mirrors the production
// report: the JSE Top 40, three rand currency pairs, Brent crude, gold,
// the S&P 500 and Bitcoin in rand.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/falcoza/marketreporternew/internal/market"
)

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port" validate:"min=0,max=65535"`
	Sender     string   `mapstructure:"sender"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
}

// ThemeConfig holds the report colors as hex strings.
type ThemeConfig struct {
	Background string `mapstructure:"background"`
	Text       string `mapstructure:"text"`
	Header     string `mapstructure:"header"`
	Border     string `mapstructure:"border"`
	Positive   string `mapstructure:"positive"`
	Negative   string `mapstructure:"negative"`
}

// OutlierConfig tunes the outlier guard. Which instruments it applies
// to is part of each instrument's definition (Guarded/GuardSymbol).
type OutlierConfig struct {
	Threshold float64 `mapstructure:"threshold" validate:"gt=0"`
}

// RetryConfig tunes the retry executor used around provider calls.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"min=1"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor" validate:"gte=1"`
}

// Config holds all configuration for the market reporter.
type Config struct {
	Timezone   string `mapstructure:"timezone" validate:"required"`
	CachePath  string `mapstructure:"cache_path" validate:"required"`
	OutputPath string `mapstructure:"output_path" validate:"required"`

	// API keys; the AlphaVantage key is optional — candidates using it
	// simply fail over when it is empty.
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url" validate:"required"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url" validate:"required"`
	CoinGeckoBaseURL    string `mapstructure:"coingecko_base_url" validate:"required"`
	FrankfurterBaseURL  string `mapstructure:"frankfurter_base_url" validate:"required"`

	// CryptoVsCurrency is the currency crypto prices are quoted in.
	CryptoVsCurrency string `mapstructure:"crypto_vs_currency" validate:"required"`

	Instruments []market.Instrument `mapstructure:"instruments" validate:"min=1,dive"`
	Outlier     OutlierConfig       `mapstructure:"outlier"`
	Retry       RetryConfig         `mapstructure:"retry"`
	SMTP        SMTPConfig          `mapstructure:"smtp"`
	Theme       ThemeConfig         `mapstructure:"theme"`
}

// DefaultBasket returns the production instrument basket in report
// order. Candidate lists are priority-ordered; for currency pairs the
// independent rate provider comes last so it is consulted only after
// the whole ticker chain failed.
func DefaultBasket() []market.Instrument {
	return []market.Instrument{
		{
			ID: "jse-top40", Name: "JSE Top 40", Category: market.CategoryIndex, Core: true,
			Guarded: true, GuardSymbol: "STX40.JSE",
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "^JN0U.JO"},
				{Provider: "yahoo", Symbol: "STX40.JO"},
			},
		},
		{
			ID: "usd-zar", Name: "USD/ZAR", Category: market.CategoryFX, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "USDZAR=X"},
				{Provider: "yahoo", Symbol: "ZAR=X"},
				{Provider: "frankfurter", Symbol: "USD/ZAR"},
			},
		},
		{
			ID: "eur-zar", Name: "EUR/ZAR", Category: market.CategoryFX, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "EURZAR=X"},
				{Provider: "frankfurter", Symbol: "EUR/ZAR"},
			},
		},
		{
			ID: "gbp-zar", Name: "GBP/ZAR", Category: market.CategoryFX, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "GBPZAR=X"},
				{Provider: "frankfurter", Symbol: "GBP/ZAR"},
			},
		},
		{
			ID: "brent", Name: "Brent Crude", Category: market.CategoryCommodity, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "BZ=F"},
			},
		},
		{
			ID: "gold", Name: "Gold", Category: market.CategoryCommodity, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "GC=F"},
				{Provider: "yahoo", Symbol: "XAUUSD=X"},
			},
		},
		{
			ID: "sp500", Name: "S&P 500", Category: market.CategoryIndex, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "^GSPC"},
				{Provider: "alphavantage", Symbol: "SPY"},
			},
		},
		{
			// Non-core: a crypto outage should not block the
			// last-known-good cache for the rest of the basket.
			ID: "bitcoin-zar", Name: "Bitcoin (ZAR)", Category: market.CategoryCrypto, Core: false,
			Candidates: []market.Candidate{
				{Provider: "coingecko", Symbol: "bitcoin"},
				{Provider: "yahoo", Symbol: "BTC-ZAR"},
			},
		},
	}
}

// Load reads configuration from environment variables and an optional
// config file.
//
// Expected environment variables (all optional):
//   - ALPHAVANTAGE_API_KEY
//   - EMAIL_SENDER, EMAIL_PASSWORD, EMAIL_RECEIVER
//   - SMTP_SERVER, SMTP_PORT
//   - YAHOO_BASE_URL, ALPHAVANTAGE_BASE_URL, COINGECKO_BASE_URL,
//     FRANKFURTER_BASE_URL (default to production)
func Load() (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.SetDefault("timezone", "Africa/Johannesburg")
	v.SetDefault("cache_path", "last_report.json")
	v.SetDefault("output_path", "market_report.png")
	v.SetDefault("crypto_vs_currency", "zar")

	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("coingecko_base_url", "https://api.coingecko.com")
	v.SetDefault("frankfurter_base_url", "https://api.frankfurter.dev")

	v.SetDefault("outlier.threshold", 12.0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.backoff_factor", 2.0)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)

	v.SetDefault("theme.background", "#FFFFFF")
	v.SetDefault("theme.text", "#1D1D1B")
	v.SetDefault("theme.header", "#B31B1B")
	v.SetDefault("theme.border", "#D3D3D3")
	v.SetDefault("theme.positive", "#1A7A1A")
	v.SetDefault("theme.negative", "#B31B1B")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.marketreporter")
	_ = v.ReadInConfig()

	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("coingecko_base_url", "COINGECKO_BASE_URL")
	v.BindEnv("frankfurter_base_url", "FRANKFURTER_BASE_URL")
	v.BindEnv("smtp.host", "SMTP_SERVER")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.sender", "EMAIL_SENDER")
	v.BindEnv("smtp.password", "EMAIL_PASSWORD")
	v.BindEnv("smtp.recipients", "EMAIL_RECEIVER")

	config := &Config{}
	// Weak typing lets numeric settings arrive as env strings.
	weak := func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }
	if err := v.Unmarshal(config, weak); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Instruments) == 0 {
		config.Instruments = DefaultBasket()
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

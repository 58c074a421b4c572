// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	GridBot   GridBotConfig   `yaml:"grid_bot"`
	Notify    NotifyConfig    `yaml:"notify"`
	DB        DBConfig        `yaml:"db"`
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ExchangeConfig contains exchange credentials and tuning
type ExchangeConfig struct {
	Name            string  `yaml:"name"`
	APIKey          string  `yaml:"api_key"`
	SecretKey       string  `yaml:"secret_key"`
	BaseURL         string  `yaml:"base_url"` // Optional override for the REST endpoint
	PublicURL       string  `yaml:"public_url"`
	Fee             float64 `yaml:"fee"`
	MaxOrderCount   int     `yaml:"max_order_count"`
	PricePrecision  int32   `yaml:"price_precision"`
	AmountPrecision int32   `yaml:"amount_precision"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	RatePerSecond   float64 `yaml:"rate_per_second"` // REST request budget
}

// GridBotConfig contains the grid strategy parameters
type GridBotConfig struct {
	Pair             string  `yaml:"pair"`
	GridNum          int     `yaml:"grid_num"`
	PriceInterval    float64 `yaml:"price_interval"`
	Support          float64 `yaml:"support"` // Used when price_interval is 0
	BaseUsage        float64 `yaml:"base_usage"`
	QuoteUsage       float64 `yaml:"quote_usage"`
	BalanceThreshold int     `yaml:"balance_threshold"`
	CheckInterval    int     `yaml:"check_interval"`  // Seconds between syncs
	ResetInterval    int     `yaml:"reset_interval"`  // Seconds before the grid is recycled, 0 disables
	ReportInterval   int     `yaml:"report_interval"` // Seconds between execution reports
	User             string  `yaml:"user"`
}

// NotifyConfig contains notification channel settings
type NotifyConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

// DiscordConfig holds per-channel Discord webhooks
type DiscordConfig struct {
	Enabled      bool   `yaml:"enabled"`
	InfoWebhook  string `yaml:"info_webhook"`
	ErrorWebhook string `yaml:"error_webhook"`
	BuyWebhook   string `yaml:"buy_webhook"`
	SellWebhook  string `yaml:"sell_webhook"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// SlackConfig holds Slack webhook settings
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DBConfig contains state store settings
type DBConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bitbank"
	}
	if c.Exchange.MaxOrderCount == 0 {
		c.Exchange.MaxOrderCount = 30
	}
	if c.Exchange.TimeoutSeconds == 0 {
		c.Exchange.TimeoutSeconds = 10
	}
	if c.Exchange.RatePerSecond == 0 {
		c.Exchange.RatePerSecond = 5
	}
	if c.GridBot.CheckInterval == 0 {
		c.GridBot.CheckInterval = 1
	}
	if c.GridBot.ReportInterval == 0 {
		c.GridBot.ReportInterval = 3600
	}
	if c.GridBot.BaseUsage == 0 {
		c.GridBot.BaseUsage = 1.0
	}
	if c.GridBot.QuoteUsage == 0 {
		c.GridBot.QuoteUsage = 1.0
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateExchangeConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateGridBotConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateExchangeConfig() error {
	if c.Exchange.APIKey == "" {
		return ValidationError{
			Field:   "exchange.api_key",
			Message: "API key is required",
		}
	}
	if c.Exchange.SecretKey == "" {
		return ValidationError{
			Field:   "exchange.secret_key",
			Message: "secret key is required",
		}
	}
	if c.Exchange.MaxOrderCount < 2 {
		return ValidationError{
			Field:   "exchange.max_order_count",
			Value:   c.Exchange.MaxOrderCount,
			Message: "must allow at least one order per side",
		}
	}
	return nil
}

func (c *Config) validateGridBotConfig() error {
	if c.GridBot.Pair == "" {
		return ValidationError{
			Field:   "grid_bot.pair",
			Message: "trading pair is required",
		}
	}
	if c.GridBot.GridNum <= 0 || c.GridBot.GridNum%2 != 0 {
		return ValidationError{
			Field:   "grid_bot.grid_num",
			Value:   c.GridBot.GridNum,
			Message: "must be a positive even number",
		}
	}
	if c.GridBot.PriceInterval <= 0 && c.GridBot.Support <= 0 {
		return ValidationError{
			Field:   "grid_bot.price_interval",
			Message: "either price_interval or support must be set",
		}
	}
	if c.GridBot.BaseUsage <= 0 || c.GridBot.BaseUsage > 1 {
		return ValidationError{
			Field:   "grid_bot.base_usage",
			Value:   c.GridBot.BaseUsage,
			Message: "must be in (0, 1]",
		}
	}
	if c.GridBot.QuoteUsage <= 0 || c.GridBot.QuoteUsage > 1 {
		return ValidationError{
			Field:   "grid_bot.quote_usage",
			Value:   c.GridBot.QuoteUsage,
			Message: "must be in (0, 1]",
		}
	}
	if c.GridBot.BalanceThreshold < 0 {
		return ValidationError{
			Field:   "grid_bot.balance_threshold",
			Value:   c.GridBot.BalanceThreshold,
			Message: "must not be negative",
		}
	}
	if c.GridBot.CheckInterval <= 0 {
		return ValidationError{
			Field:   "grid_bot.check_interval",
			Value:   c.GridBot.CheckInterval,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// CheckIntervalDuration returns the sync cadence as a duration.
func (c *GridBotConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// ResetIntervalDuration returns the grid recycle period, 0 when disabled.
func (c *GridBotConfig) ResetIntervalDuration() time.Duration {
	return time.Duration(c.ResetInterval) * time.Second
}

// ReportIntervalDuration returns the execution report cadence.
func (c *GridBotConfig) ReportIntervalDuration() time.Duration {
	return time.Duration(c.ReportInterval) * time.Second
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	configCopy.Exchange.APIKey = maskString(configCopy.Exchange.APIKey)
	configCopy.Exchange.SecretKey = maskString(configCopy.Exchange.SecretKey)
	configCopy.Notify.Telegram.BotToken = maskString(configCopy.Notify.Telegram.BotToken)

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		Exchange: ExchangeConfig{
			Name:            "bitbank",
			APIKey:          "test_api_key",
			SecretKey:       "test_secret_key",
			Fee:             -0.0002,
			MaxOrderCount:   30,
			PricePrecision:  4,
			AmountPrecision: 4,
		},
		GridBot: GridBotConfig{
			Pair:             "btc_jpy",
			GridNum:          100,
			PriceInterval:    10000,
			BaseUsage:        0.5,
			QuoteUsage:       0.5,
			BalanceThreshold: 1,
			CheckInterval:    1,
			User:             "default",
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
	cfg.applyDefaults()
	return cfg
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Dispatch  DispatchConfig   `yaml:"dispatch"`
	Exchanges ExchangesConfig  `yaml:"exchanges"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port string `yaml:"port" default:":8080"`
	Host string `yaml:"host" default:"localhost"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" default:"sqlite"`
	DSN    string `yaml:"dsn" default:"tv-dispatch.db"`
}

// DispatchConfig controls the fan-out pipeline
type DispatchConfig struct {
	WorkerLimit        int     `yaml:"worker_limit"`
	MaxRetries         int     `yaml:"max_retries"`
	RetryBaseDelayMS   int     `yaml:"retry_base_delay_ms"`
	CredentialTimeoutS int     `yaml:"credential_timeout_s"`
	OrderTimeoutS      int     `yaml:"order_timeout_s"`
	DispatchTimeoutS   int     `yaml:"dispatch_timeout_s"`
	OrdersPerSecond    float64 `yaml:"orders_per_second"`
}

// ExchangesConfig holds per-exchange client settings
type ExchangesConfig struct {
	Binance BinanceConfig `yaml:"binance"`
	Alpaca  AlpacaConfig  `yaml:"alpaca"`
}

// BinanceConfig represents Binance client configuration
type BinanceConfig struct {
	UseTestnet bool `yaml:"use_testnet" default:"true"`
}

// AlpacaConfig represents Alpaca client configuration
type AlpacaConfig struct {
	BaseURL string `yaml:"base_url" default:"https://paper-api.alpaca.markets"`
}

// EndpointConfig represents a downstream notification endpoint
type EndpointConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"` // telegram, webhook
	URL      string `yaml:"url"`
	Token    string `yaml:"token,omitempty"`
	ChatID   string `yaml:"chat_id,omitempty"`
	IsActive bool   `yaml:"is_active" default:"true"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Dispatch.applyDefaults()
	return &config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyDefaults fills zero values with safe dispatch defaults. The worker
// limit defaults to the slowest exchange's safe concurrent-request budget.
func (c *DispatchConfig) applyDefaults() {
	if c.WorkerLimit <= 0 {
		c.WorkerLimit = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.RetryBaseDelayMS <= 0 {
		c.RetryBaseDelayMS = 500
	}
	if c.CredentialTimeoutS <= 0 {
		c.CredentialTimeoutS = 3
	}
	if c.OrderTimeoutS <= 0 {
		c.OrderTimeoutS = 30
	}
	if c.DispatchTimeoutS <= 0 {
		c.DispatchTimeoutS = 60
	}
	if c.OrdersPerSecond <= 0 {
		c.OrdersPerSecond = 5
	}
}

// DefaultDispatchConfig returns a DispatchConfig with all defaults applied
func DefaultDispatchConfig() DispatchConfig {
	var c DispatchConfig
	c.applyDefaults()
	return c
}

// RetryBaseDelay returns the retry base delay as a duration
func (c *DispatchConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// CredentialTimeout returns the credential lookup timeout as a duration
func (c *DispatchConfig) CredentialTimeout() time.Duration {
	return time.Duration(c.CredentialTimeoutS) * time.Second
}

// OrderTimeout returns the order placement timeout as a duration
func (c *DispatchConfig) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutS) * time.Second
}

// DispatchTimeout returns the whole-fan-out deadline as a duration
func (c *DispatchConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutS) * time.Second
}

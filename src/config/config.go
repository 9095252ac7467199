package config

import (
	"fmt"
	"os"

	"price-oracle/src/models"

	"gopkg.in/yaml.v3"
)

// Defaults applied before validation
const (
	DefaultSystemAccount     = "system"
	DefaultPricePointsWindow = 5
	DefaultReadCacheSize     = 256
	DefaultReloadSpec        = "@every 30s"
	DefaultGrpcPort          = 50051
	DefaultConnectRetries    = 3
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, fills defaults and validates it.
func Parse(data []byte) (*Config, error) {
	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = DefaultGrpcPort
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.ConnectRetries == 0 {
		c.Storage.ConnectRetries = DefaultConnectRetries
	}
	if c.Oracle.SystemAccount == "" {
		c.Oracle.SystemAccount = DefaultSystemAccount
	}
	if c.Oracle.PricePointsWindow == 0 {
		c.Oracle.PricePointsWindow = DefaultPricePointsWindow
	}
	if c.Oracle.ReadCacheSize == 0 {
		c.Oracle.ReadCacheSize = DefaultReadCacheSize
	}
	if c.Producers.ReloadSpec == "" {
		c.Producers.ReloadSpec = DefaultReloadSpec
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort <= 1024 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}
	if c.GrpcPort == c.Port {
		return fmt.Errorf("grpc port must differ from http port")
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite", "pebble":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for %s", c.Storage.DBType)
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.ConnectRetries < 0 {
		return fmt.Errorf("connect retries cannot be negative")
	}

	// Validate Oracle configuration
	if c.Oracle.PricePointsWindow < 1 || c.Oracle.PricePointsWindow%2 == 0 {
		return fmt.Errorf("price points window must be a positive odd number, got %d", c.Oracle.PricePointsWindow)
	}
	if c.Oracle.ReadCacheSize < 0 {
		return fmt.Errorf("read cache size cannot be negative")
	}
	for i, p := range c.Oracle.Pairs {
		if p == "" {
			return fmt.Errorf("bootstrap pair %d cannot be empty", i)
		}
	}

	// Validate Producers configuration
	if c.Producers.ScheduleFile == "" && len(c.Producers.Active) == 0 {
		return fmt.Errorf("at least one active producer or a schedule file must be configured")
	}

	// Validate API configuration
	if c.API.RateLimitPerSecond < 0 || c.API.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: price-oracle
host: 127.0.0.1
port: 8000
storage:
  db_type: memory
producers:
  active: [alice, bob, carol]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultSystemAccount, cfg.Oracle.SystemAccount)
	assert.Equal(t, DefaultPricePointsWindow, cfg.Oracle.PricePointsWindow)
	assert.Equal(t, DefaultGrpcPort, cfg.GrpcPort)
	assert.Equal(t, DefaultReloadSpec, cfg.Producers.ReloadSpec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"alice", "bob", "carol"}, cfg.Producers.Active)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"low port", func(c *Config) { c.Port = 80 }},
		{"same ports", func(c *Config) { c.GrpcPort = c.Port }},
		{"unknown db", func(c *Config) { c.Storage.DBType = "mongo" }},
		{"sqlite without path", func(c *Config) { c.Storage.DBType = "sqlite"; c.Storage.DBPath = "" }},
		{"postgres without dsn", func(c *Config) { c.Storage.DBType = "postgres" }},
		{"even window", func(c *Config) { c.Oracle.PricePointsWindow = 4 }},
		{"no producers", func(c *Config) { c.Producers.Active = nil }},
		{"empty bootstrap pair", func(c *Config) { c.Oracle.Pairs = []string{""} }},
		{"negative rate", func(c *Config) { c.API.RateLimitPerSecond = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validYAML))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	cfg.Oracle.Pairs = []string{"BTCUSD"}

	path := filepath.Join(t.TempDir(), "oracle.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, cfg.Port, loaded.Port)
	assert.Equal(t, cfg.Storage, loaded.Storage)
	assert.Equal(t, cfg.Oracle, loaded.Oracle)
	assert.Equal(t, cfg.Producers.Active, loaded.Producers.Active)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

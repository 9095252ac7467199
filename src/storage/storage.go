package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"
)

// ErrNotInitialized is returned by Begin before Initialize succeeded.
var ErrNotInitialized = errors.New("database is not initialized")

// connectRetryDelay is the first backoff step when opening a back end.
var connectRetryDelay = 500 * time.Millisecond

// -----------------------------------------------------------------------------

// NewDatabase selects the back end named by the storage section of cfg.
// The returned database still needs Initialize.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "sqlite", "":
		return NewSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	case "pebble":
		return NewPebbleDB(cfg, log)
	case "memory":
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

type pairResolver interface {
	ResolvePairs(raw []string) ([]string, error)
}

// ResolveBootstrapPairs expands table references in the configured pairs when
// the back end supports them, and rejects them otherwise.
func ResolveBootstrapPairs(db interfaces.IDatabase, raw []string) ([]string, error) {
	if r, ok := db.(pairResolver); ok {
		return r.ResolvePairs(raw)
	}
	for _, entry := range raw {
		if strings.HasPrefix(entry, PairRefPrefix) {
			return nil, fmt.Errorf("pair reference %q requires the postgres back end", entry)
		}
	}
	return raw, nil
}

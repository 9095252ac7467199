package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"price-oracle/src/helpers"
	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"

	_ "github.com/lib/pq"
)

// PairRefPrefix marks a bootstrap entry that names a Postgres column to read
// pair identifiers from, e.g. "pg:market.assets.symbol".
const PairRefPrefix = "pg:"

var pairRefPattern = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps the oracle tables in a schema named after the executable.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

func (d *PostgresDB) dialect() sqlDialect {
	return sqlDialect{postgres: true, schema: d.Schema}
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString

	db, err := helpers.RetryWithBackoff(d.Logger, "connect postgres", d.Config.Storage.ConnectRetries, connectRetryDelay, func() (*sql.DB, error) {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return helpers.NewDatabaseError("failed to connect to postgres", err)
	}
	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := createTables(d.DB, d.dialect()); err != nil {
		return helpers.NewDatabaseError("failed to create postgres tables", err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Begin(ctx context.Context) (interfaces.ITx, error) {
	return beginSQL(ctx, d.DB, d.dialect())
}

// -----------------------------------------------------------------------------

// ResolvePairs expands "pg:schema.table.field" entries into the non-empty
// values of that column. Other entries are returned unchanged.
func (d *PostgresDB) ResolvePairs(raw []string) ([]string, error) {
	var pairs []string
	for _, entry := range raw {
		if !strings.HasPrefix(entry, PairRefPrefix) {
			pairs = append(pairs, entry)
			continue
		}

		matches := pairRefPattern.FindStringSubmatch(strings.TrimPrefix(entry, PairRefPrefix))
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid pair reference %q, want %sschema.table.field", entry, PairRefPrefix)
		}

		loaded, err := d.pairsFromTable(matches[1], matches[2], matches[3])
		if err != nil {
			return nil, fmt.Errorf("failed to load pairs from %s: %w", entry, err)
		}
		pairs = append(pairs, loaded...)
	}
	return pairs, nil
}

func (d *PostgresDB) pairsFromTable(schema, table, field string) ([]string, error) {
	if d.DB == nil {
		return nil, ErrNotInitialized
	}

	// Identifiers are \w+ only, quoting is enough
	query := fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table)
	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid && s.String != "" {
			pairs = append(pairs, s.String)
		}
	}
	return pairs, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

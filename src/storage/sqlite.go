package storage

import (
	"context"
	"database/sql"

	"price-oracle/src/helpers"
	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := helpers.RetryWithBackoff(d.Logger, "open sqlite", d.Config.Storage.ConnectRetries, connectRetryDelay, func() (*sql.DB, error) {
		db, err := sql.Open("sqlite", dsn)
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
		return helpers.NewDatabaseError("failed to open sqlite database", err)
	}

	// A single connection keeps writers serialized and lets ":memory:" work
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := createTables(db, sqlDialect{}); err != nil {
		return helpers.NewDatabaseError("failed to create sqlite tables", err)
	}

	d.Logger.Info("SQLiteDB initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Begin(ctx context.Context) (interfaces.ITx, error) {
	return beginSQL(ctx, d.DB, sqlDialect{})
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

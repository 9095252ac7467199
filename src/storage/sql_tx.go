package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// sqlDialect hides the few differences between SQLite and Postgres: the
// placeholder style, the float column type and the optional schema prefix.
// -----------------------------------------------------------------------------

type sqlDialect struct {
	postgres bool
	schema   string
}

func (d sqlDialect) table(name string) string {
	if d.schema == "" {
		return name
	}
	return fmt.Sprintf(`"%s"."%s"`, d.schema, name)
}

func (d sqlDialect) floatType() string {
	if d.postgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

// query formats the table names into q and rewrites ? placeholders to $n for Postgres.
func (d sqlDialect) query(q string, tables ...string) string {
	args := make([]interface{}, len(tables))
	for i, t := range tables {
		args[i] = d.table(t)
	}
	q = fmt.Sprintf(q, args...)
	if !d.postgres {
		return q
	}

	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func createTables(db *sql.DB, d sqlDialect) error {
	statements := []struct {
		name  string
		query string
	}{
		{"pairs", d.query(`
			CREATE TABLE IF NOT EXISTS %s (
				pair TEXT PRIMARY KEY,
				created_at BIGINT NOT NULL
			);
		`, "pairs")},
		{"submissions", d.query(`
			CREATE TABLE IF NOT EXISTS %s (
				producer TEXT PRIMARY KEY,
				pairs_data TEXT NOT NULL,
				last_update BIGINT NOT NULL
			);
		`, "submissions")},
		{"published_prices", d.query(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %%s (
				pair TEXT PRIMARY KEY,
				price %s NOT NULL,
				price_points TEXT NOT NULL,
				last_update BIGINT NOT NULL
			);
		`, d.floatType()), "published_prices")},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// sqlTx implements interfaces.ITx over database/sql. Maps and slices are
// stored as JSON text and timestamps as Unix nanoseconds.
// -----------------------------------------------------------------------------

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
	d   sqlDialect
}

func beginSQL(ctx context.Context, db *sql.DB, d sqlDialect) (*sqlTx, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{ctx: ctx, tx: tx, d: d}, nil
}

// -----------------------------------------------------------------------------

func (t *sqlTx) ListPairs() ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.d.query(`SELECT pair FROM %s ORDER BY pair`, "pairs"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (t *sqlTx) HasPair(pair string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, t.d.query(`SELECT 1 FROM %s WHERE pair = ?`, "pairs"), pair).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (t *sqlTx) InsertPair(pair string, createdAt time.Time) error {
	_, err := t.tx.ExecContext(t.ctx, t.d.query(`INSERT INTO %s (pair, created_at) VALUES (?, ?)`, "pairs"), pair, createdAt.UnixNano())
	return err
}

// -----------------------------------------------------------------------------

func (t *sqlTx) GetSubmission(producer string) (*models.MSubmission, error) {
	row := t.tx.QueryRowContext(t.ctx, t.d.query(`SELECT producer, pairs_data, last_update FROM %s WHERE producer = ?`, "submissions"), producer)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (t *sqlTx) PutSubmission(sub models.MSubmission) error {
	data, err := json.Marshal(sub.PairsData)
	if err != nil {
		return fmt.Errorf("failed to encode pairs_data: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, t.d.query(`
		INSERT INTO %s (producer, pairs_data, last_update)
		VALUES (?, ?, ?)
		ON CONFLICT (producer) DO UPDATE SET
			pairs_data = excluded.pairs_data,
			last_update = excluded.last_update
	`, "submissions"), sub.Producer, string(data), sub.LastUpdate.UnixNano())
	return err
}

func (t *sqlTx) ListSubmissions() ([]models.MSubmission, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.d.query(`SELECT producer, pairs_data, last_update FROM %s ORDER BY producer`, "submissions"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.MSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// -----------------------------------------------------------------------------

func (t *sqlTx) GetPublishedPrice(pair string) (*models.MPublishedPrice, error) {
	row := t.tx.QueryRowContext(t.ctx, t.d.query(`SELECT pair, price, price_points, last_update FROM %s WHERE pair = ?`, "published_prices"), pair)
	p, err := scanPublishedPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) PutPublishedPrice(price models.MPublishedPrice) error {
	points, err := json.Marshal(price.PricePoints)
	if err != nil {
		return fmt.Errorf("failed to encode price_points: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, t.d.query(`
		INSERT INTO %s (pair, price, price_points, last_update)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pair) DO UPDATE SET
			price = excluded.price,
			price_points = excluded.price_points,
			last_update = excluded.last_update
	`, "published_prices"), price.Pair, price.Price, string(points), price.LastUpdate.UnixNano())
	return err
}

func (t *sqlTx) ListPublishedPrices() ([]models.MPublishedPrice, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.d.query(`SELECT pair, price, price_points, last_update FROM %s ORDER BY pair`, "published_prices"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []models.MPublishedPrice
	for rows.Next() {
		p, err := scanPublishedPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// -----------------------------------------------------------------------------

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(s scanner) (models.MSubmission, error) {
	var (
		sub  models.MSubmission
		data string
		ts   int64
	)
	if err := s.Scan(&sub.Producer, &data, &ts); err != nil {
		return sub, err
	}
	if err := json.Unmarshal([]byte(data), &sub.PairsData); err != nil {
		return sub, fmt.Errorf("failed to decode pairs_data of %s: %w", sub.Producer, err)
	}
	if sub.PairsData == nil {
		sub.PairsData = map[string]float64{}
	}
	sub.LastUpdate = time.Unix(0, ts).UTC()
	return sub, nil
}

func scanPublishedPrice(s scanner) (models.MPublishedPrice, error) {
	var (
		p      models.MPublishedPrice
		points string
		ts     int64
	)
	if err := s.Scan(&p.Pair, &p.Price, &points, &ts); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(points), &p.PricePoints); err != nil {
		return p, fmt.Errorf("failed to decode price_points of %s: %w", p.Pair, err)
	}
	p.LastUpdate = time.Unix(0, ts).UTC()
	return p, nil
}

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"price-oracle/src/interfaces"
	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// MemoryDB keeps the tables in maps. A transaction owns the database until it
// commits or rolls back and works on a private copy, so a rollback is simply
// dropping the copy.
// -----------------------------------------------------------------------------

type MemoryDB struct {
	mu     sync.Mutex
	tables memoryTables
}

type memoryTables struct {
	pairs       map[string]time.Time
	submissions map[string]models.MSubmission
	prices      map[string]models.MPublishedPrice
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{tables: memoryTables{
		pairs:       map[string]time.Time{},
		submissions: map[string]models.MSubmission{},
		prices:      map[string]models.MPublishedPrice{},
	}}
}

func (d *MemoryDB) Initialize() error { return nil }

func (d *MemoryDB) Close() error { return nil }

// -----------------------------------------------------------------------------

func (d *MemoryDB) Begin(ctx context.Context) (interfaces.ITx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	return &memoryTx{db: d, tables: d.tables.clone()}, nil
}

func (t memoryTables) clone() memoryTables {
	out := memoryTables{
		pairs:       make(map[string]time.Time, len(t.pairs)),
		submissions: make(map[string]models.MSubmission, len(t.submissions)),
		prices:      make(map[string]models.MPublishedPrice, len(t.prices)),
	}
	for k, v := range t.pairs {
		out.pairs[k] = v
	}
	for k, v := range t.submissions {
		out.submissions[k] = v.Clone()
	}
	for k, v := range t.prices {
		out.prices[k] = v.Clone()
	}
	return out
}

// -----------------------------------------------------------------------------

type memoryTx struct {
	db     *MemoryDB
	tables memoryTables
	done   bool
}

func (t *memoryTx) ListPairs() ([]string, error) {
	pairs := make([]string, 0, len(t.tables.pairs))
	for p := range t.tables.pairs {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs, nil
}

func (t *memoryTx) HasPair(pair string) (bool, error) {
	_, ok := t.tables.pairs[pair]
	return ok, nil
}

func (t *memoryTx) InsertPair(pair string, createdAt time.Time) error {
	t.tables.pairs[pair] = createdAt
	return nil
}

func (t *memoryTx) GetSubmission(producer string) (*models.MSubmission, error) {
	sub, ok := t.tables.submissions[producer]
	if !ok {
		return nil, nil
	}
	out := sub.Clone()
	return &out, nil
}

func (t *memoryTx) PutSubmission(sub models.MSubmission) error {
	t.tables.submissions[sub.Producer] = sub.Clone()
	return nil
}

func (t *memoryTx) ListSubmissions() ([]models.MSubmission, error) {
	subs := make([]models.MSubmission, 0, len(t.tables.submissions))
	for _, sub := range t.tables.submissions {
		subs = append(subs, sub.Clone())
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Producer < subs[j].Producer })
	return subs, nil
}

func (t *memoryTx) GetPublishedPrice(pair string) (*models.MPublishedPrice, error) {
	p, ok := t.tables.prices[pair]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (t *memoryTx) PutPublishedPrice(price models.MPublishedPrice) error {
	t.tables.prices[price.Pair] = price.Clone()
	return nil
}

func (t *memoryTx) ListPublishedPrices() ([]models.MPublishedPrice, error) {
	prices := make([]models.MPublishedPrice, 0, len(t.tables.prices))
	for _, p := range t.tables.prices {
		prices = append(prices, p.Clone())
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Pair < prices[j].Pair })
	return prices, nil
}

// -----------------------------------------------------------------------------

func (t *memoryTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.db.tables = t.tables
	t.db.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.db.mu.Unlock()
	return nil
}

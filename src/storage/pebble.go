package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ugorji/go/codec"

	"price-oracle/src/helpers"
	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"
)

// Key prefixes of the three tables
var (
	pairPrefix       = []byte("pair/")
	submissionPrefix = []byte("sub/")
	pricePrefix      = []byte("price/")
)

// -----------------------------------------------------------------------------
// PebbleDB stores every table in one pebble keyspace with msgpack values.
// A transaction is an indexed batch, so reads see its own writes.
// -----------------------------------------------------------------------------

type PebbleDB struct {
	Config  *models.MConfig
	DB      *pebble.DB
	Logger  *logger.Logger
	Options *pebble.Options

	mu sync.Mutex // one open batch at a time
}

func NewPebbleDB(cfg *models.MConfig, log *logger.Logger) (*PebbleDB, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PebbleDB{
		Config:  cfg,
		Logger:  log,
		Options: &pebble.Options{},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PebbleDB) Initialize() error {
	path := d.Config.Storage.DBPath

	db, err := helpers.RetryWithBackoff(d.Logger, "open pebble", d.Config.Storage.ConnectRetries, connectRetryDelay, func() (*pebble.DB, error) {
		return pebble.Open(path, d.Options)
	})
	if err != nil {
		return helpers.NewDatabaseError("failed to open pebble database", err)
	}
	d.DB = db

	d.Logger.Info("PebbleDB initialized (%s)", path)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PebbleDB) Begin(ctx context.Context) (interfaces.ITx, error) {
	if d.DB == nil {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	return &pebbleTx{db: d, batch: d.DB.NewIndexedBatch()}, nil
}

// -----------------------------------------------------------------------------

func (d *PebbleDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// msgpack records
// -----------------------------------------------------------------------------

var msgpackHandle codec.MsgpackHandle

type pairRecord struct {
	CreatedAt int64 `codec:"created_at"`
}

type submissionRecord struct {
	PairsData  map[string]float64 `codec:"pairs_data"`
	LastUpdate int64              `codec:"last_update"`
}

type priceRecord struct {
	Price       float64   `codec:"price"`
	PricePoints []float64 `codec:"price_points"`
	LastUpdate  int64     `codec:"last_update"`
}

func encodeRecord(v interface{}) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeRecord(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, &msgpackHandle).Decode(v)
}

func tableKey(prefix []byte, id string) []byte {
	key := make([]byte, 0, len(prefix)+len(id))
	key = append(key, prefix...)
	return append(key, id...)
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

// -----------------------------------------------------------------------------

type pebbleTx struct {
	db    *PebbleDB
	batch *pebble.Batch
	done  bool
}

// get copies the value out of the batch. A missing key yields (nil, nil).
func (t *pebbleTx) get(key []byte) ([]byte, error) {
	val, closer, err := t.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (t *pebbleTx) put(key []byte, v interface{}) error {
	data, err := encodeRecord(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return t.batch.Set(key, data, nil)
}

// scan calls fn with the id and value of every key under prefix, in key order.
func (t *pebbleTx) scan(prefix []byte, fn func(id string, value []byte) error) error {
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id := string(bytes.TrimPrefix(iter.Key(), prefix))
		val := append([]byte(nil), iter.Value()...)
		if err := fn(id, val); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -----------------------------------------------------------------------------

func (t *pebbleTx) ListPairs() ([]string, error) {
	var pairs []string
	err := t.scan(pairPrefix, func(id string, _ []byte) error {
		pairs = append(pairs, id)
		return nil
	})
	return pairs, err
}

func (t *pebbleTx) HasPair(pair string) (bool, error) {
	val, err := t.get(tableKey(pairPrefix, pair))
	return val != nil, err
}

func (t *pebbleTx) InsertPair(pair string, createdAt time.Time) error {
	return t.put(tableKey(pairPrefix, pair), pairRecord{CreatedAt: createdAt.UnixNano()})
}

// -----------------------------------------------------------------------------

func (t *pebbleTx) GetSubmission(producer string) (*models.MSubmission, error) {
	val, err := t.get(tableKey(submissionPrefix, producer))
	if err != nil || val == nil {
		return nil, err
	}
	sub, err := decodeSubmission(producer, val)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (t *pebbleTx) PutSubmission(sub models.MSubmission) error {
	return t.put(tableKey(submissionPrefix, sub.Producer), submissionRecord{
		PairsData:  sub.PairsData,
		LastUpdate: sub.LastUpdate.UnixNano(),
	})
}

func (t *pebbleTx) ListSubmissions() ([]models.MSubmission, error) {
	var subs []models.MSubmission
	err := t.scan(submissionPrefix, func(id string, val []byte) error {
		sub, err := decodeSubmission(id, val)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	})
	return subs, err
}

func decodeSubmission(producer string, val []byte) (models.MSubmission, error) {
	var rec submissionRecord
	if err := decodeRecord(val, &rec); err != nil {
		return models.MSubmission{}, fmt.Errorf("failed to decode submission of %s: %w", producer, err)
	}
	if rec.PairsData == nil {
		rec.PairsData = map[string]float64{}
	}
	return models.MSubmission{
		Producer:   producer,
		PairsData:  rec.PairsData,
		LastUpdate: time.Unix(0, rec.LastUpdate).UTC(),
	}, nil
}

// -----------------------------------------------------------------------------

func (t *pebbleTx) GetPublishedPrice(pair string) (*models.MPublishedPrice, error) {
	val, err := t.get(tableKey(pricePrefix, pair))
	if err != nil || val == nil {
		return nil, err
	}
	p, err := decodePrice(pair, val)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pebbleTx) PutPublishedPrice(price models.MPublishedPrice) error {
	return t.put(tableKey(pricePrefix, price.Pair), priceRecord{
		Price:       price.Price,
		PricePoints: price.PricePoints,
		LastUpdate:  price.LastUpdate.UnixNano(),
	})
}

func (t *pebbleTx) ListPublishedPrices() ([]models.MPublishedPrice, error) {
	var prices []models.MPublishedPrice
	err := t.scan(pricePrefix, func(id string, val []byte) error {
		p, err := decodePrice(id, val)
		if err != nil {
			return err
		}
		prices = append(prices, p)
		return nil
	})
	sort.Slice(prices, func(i, j int) bool { return prices[i].Pair < prices[j].Pair })
	return prices, err
}

func decodePrice(pair string, val []byte) (models.MPublishedPrice, error) {
	var rec priceRecord
	if err := decodeRecord(val, &rec); err != nil {
		return models.MPublishedPrice{}, fmt.Errorf("failed to decode price of %s: %w", pair, err)
	}
	return models.MPublishedPrice{
		Pair:        pair,
		Price:       rec.Price,
		PricePoints: rec.PricePoints,
		LastUpdate:  time.Unix(0, rec.LastUpdate).UTC(),
	}, nil
}

// -----------------------------------------------------------------------------

func (t *pebbleTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.db.mu.Unlock()
	defer t.batch.Close()

	return t.batch.Commit(pebble.Sync)
}

func (t *pebbleTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.db.mu.Unlock()

	return t.batch.Close()
}

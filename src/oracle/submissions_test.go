package oracle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-oracle/src/models"
	"price-oracle/src/schedule"
)

func newSubmissionStore(t *testing.T, pairs ...string) *SubmissionStore {
	t.Helper()
	tx := openTx(t, pairs...)
	return NewSubmissionStore(tx, NewPairRegistry(tx, system), threeProducers())
}

func TestRecordReplacesWholeRow(t *testing.T) {
	store := newSubmissionStore(t, "A", "B")

	_, err := store.Record("producer1", map[string]float64{"A": 1}, start)
	require.NoError(t, err)
	_, err = store.Record("producer1", map[string]float64{"B": 2}, start.Add(SubmissionWindow))
	require.NoError(t, err)

	row, err := store.Get("producer1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, map[string]float64{"B": 2}, row.PairsData)
	assert.NotContains(t, row.PairsData, "A")
}

func TestRecordRateLimit(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	data := map[string]float64{"BTCUSD": 9000}

	_, err := store.Record("producer1", data, start)
	require.NoError(t, err)

	_, err = store.Record("producer1", data, start.Add(SubmissionWindow-time.Second))
	assert.ErrorIs(t, err, ErrSubmissionTooFrequent)

	_, err = store.Record("producer1", data, start.Add(SubmissionWindow))
	assert.NoError(t, err)
}

func TestRecordRateLimitIsPerProducer(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	data := map[string]float64{"BTCUSD": 9000}

	_, err := store.Record("producer1", data, start)
	require.NoError(t, err)
	_, err = store.Record("producer2", data, start.Add(time.Second))
	assert.NoError(t, err)
}

func TestRecordRejections(t *testing.T) {
	tests := []struct {
		name     string
		producer string
		data     map[string]float64
		want     error
	}{
		{"unknown producer", "mallory", map[string]float64{"BTCUSD": 1}, ErrUnauthorizedProducer},
		{"unknown producer wins over unknown pair", "mallory", map[string]float64{"DOGEUSD": 1}, ErrUnauthorizedProducer},
		{"empty", "producer1", map[string]float64{}, ErrEmptySubmission},
		{"unknown pair", "producer1", map[string]float64{"BTCUSD": 1, "DOGEUSD": 1}, ErrUnknownPair},
		{"unknown pair wins over bad value", "producer1", map[string]float64{"DOGEUSD": -1}, ErrUnknownPair},
		{"zero", "producer1", map[string]float64{"BTCUSD": 0}, ErrInvalidPrice},
		{"negative", "producer1", map[string]float64{"BTCUSD": -5}, ErrInvalidPrice},
		{"nan", "producer1", map[string]float64{"BTCUSD": math.NaN()}, ErrInvalidPrice},
		{"inf", "producer1", map[string]float64{"BTCUSD": math.Inf(1)}, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSubmissionStore(t, "BTCUSD")
			_, err := store.Record(tt.producer, tt.data, start)
			assert.ErrorIs(t, err, tt.want)

			row, err := store.Get(tt.producer)
			require.NoError(t, err)
			assert.Nil(t, row)
		})
	}
}

func TestUnknownPairNamesTheOffender(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	_, err := store.Record("producer1", map[string]float64{"BTCUSD": 1, "DOGEUSD": 2}, start)
	require.ErrorIs(t, err, ErrUnknownPair)
	assert.Contains(t, err.Error(), "DOGEUSD")
}

func TestRateLimitCheckedBeforeValues(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	_, err := store.Record("producer1", map[string]float64{"BTCUSD": 1}, start)
	require.NoError(t, err)

	_, err = store.Record("producer1", map[string]float64{"BTCUSD": -1}, start.Add(time.Minute))
	assert.ErrorIs(t, err, ErrSubmissionTooFrequent)
}

func TestStandbyProducerMayReport(t *testing.T) {
	tx := openTx(t, "BTCUSD")
	sched := schedule.NewProducerSchedule(models.MProducerSchedule{
		Active:  []string{"producer1"},
		Standby: []string{"backup1"},
	})
	store := NewSubmissionStore(tx, NewPairRegistry(tx, system), sched)

	_, err := store.Record("backup1", map[string]float64{"BTCUSD": 1}, start)
	assert.NoError(t, err)
}

func TestRecordDoesNotAliasInput(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	data := map[string]float64{"BTCUSD": 9000}

	_, err := store.Record("producer1", data, start)
	require.NoError(t, err)
	data["BTCUSD"] = 1

	row, err := store.Get("producer1")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, row.PairsData["BTCUSD"])
}

func TestFreshRows(t *testing.T) {
	store := newSubmissionStore(t, "BTCUSD")
	data := map[string]float64{"BTCUSD": 9000}

	_, err := store.Record("producer1", data, start)
	require.NoError(t, err)
	_, err = store.Record("producer2", data, start.Add(30*time.Minute))
	require.NoError(t, err)

	rows, err := store.FreshRows(start.Add(59 * time.Minute))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// producer1 ages out exactly one window after its update
	rows, err = store.FreshRows(start.Add(SubmissionWindow))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "producer2", rows[0].Producer)

	// stale rows are skipped, not deleted
	row, err := store.Get("producer1")
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestIsFresh(t *testing.T) {
	assert.True(t, IsFresh(start, start))
	assert.True(t, IsFresh(start, start.Add(SubmissionWindow-time.Nanosecond)))
	assert.False(t, IsFresh(start, start.Add(SubmissionWindow)))
}

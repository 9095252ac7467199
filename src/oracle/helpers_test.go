package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"price-oracle/src/interfaces"
	"price-oracle/src/models"
	"price-oracle/src/schedule"
	"price-oracle/src/storage"
)

const system = "system"

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func threeProducers() *schedule.ProducerSchedule {
	return schedule.NewProducerSchedule(models.MProducerSchedule{
		Active: []string{"producer1", "producer2", "producer3"},
	})
}

// openTx begins a transaction on a fresh memory database with the given pairs
// already registered.
func openTx(t *testing.T, pairs ...string) interfaces.ITx {
	t.Helper()

	db := storage.NewMemoryDB()
	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })

	for _, p := range pairs {
		require.NoError(t, tx.InsertPair(p, start))
	}
	return tx
}

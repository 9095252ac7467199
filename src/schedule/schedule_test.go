package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"price-oracle/src/logger"
	"price-oracle/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerScheduleMembership(t *testing.T) {
	ps := NewProducerSchedule(models.MProducerSchedule{
		Active:  []string{"alice", "bob", "carol"},
		Standby: []string{"dave", "alice"},
	})

	assert.True(t, ps.IsActiveProducer("alice"))
	assert.True(t, ps.IsActiveProducer("dave"))
	assert.False(t, ps.IsActiveProducer("mallory"))
	assert.Equal(t, 3, ps.ActiveProducerCount())

	snap := ps.Snapshot()
	assert.Equal(t, []string{"alice", "bob", "carol"}, snap.Active)
	assert.Equal(t, []string{"dave"}, snap.Standby)
}

func TestProducerScheduleReplace(t *testing.T) {
	ps := NewProducerSchedule(models.MProducerSchedule{Active: []string{"alice"}})
	ps.Replace(models.MProducerSchedule{Active: []string{"bob", " ", "carol"}})

	assert.False(t, ps.IsActiveProducer("alice"))
	assert.True(t, ps.IsActiveProducer("bob"))
	assert.Equal(t, 2, ps.ActiveProducerCount())
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active: [alice, bob]\nstandby: [carol]\n"), 0644))

	ps := NewProducerSchedule(models.MProducerSchedule{Active: []string{"zed"}})
	w := NewWatcher(path, ps, logger.NewNopLogger())
	require.NoError(t, w.Reload())

	assert.Equal(t, 2, ps.ActiveProducerCount())
	assert.True(t, ps.IsActiveProducer("carol"))
	assert.False(t, ps.IsActiveProducer("zed"))

	// A broken file keeps the previous schedule
	require.NoError(t, os.WriteFile(path, []byte("standby: [x]\n"), 0644))
	assert.Error(t, w.Reload())
	assert.Equal(t, 2, ps.ActiveProducerCount())
}

func TestWatcherStartRejectsBadSpec(t *testing.T) {
	w := NewWatcher("unused", NewProducerSchedule(models.MProducerSchedule{}), logger.NewNopLogger())
	assert.Error(t, w.Start("not a spec"))

	require.NoError(t, w.Start("@every 1h"))
	w.Stop()
}

func TestControl(t *testing.T) {
	ps := NewProducerSchedule(models.MProducerSchedule{Active: []string{"alice"}})

	static := NewControl(ps, nil)
	assert.Equal(t, []string{"alice"}, static.Snapshot().Active)
	assert.ErrorIs(t, static.Reload(), ErrStaticSchedule)

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active: [bob]\n"), 0644))

	watched := NewControl(ps, NewWatcher(path, ps, logger.NewNopLogger()))
	require.NoError(t, watched.Reload())
	assert.Equal(t, []string{"bob"}, watched.Snapshot().Active)
}

package interfaces

import (
	"time"

	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// IProducerSchedule answers who may report prices and how large the quorum is.
// -----------------------------------------------------------------------------

type IProducerSchedule interface {

	// IsActiveProducer reports whether name may submit prices.
	IsActiveProducer(name string) bool

	// -----------------------------------------------------------------------------

	// ActiveProducerCount is the number of producers the quorum is computed from.
	ActiveProducerCount() int
}

// -----------------------------------------------------------------------------
// IScheduleControl is used by operators to inspect and reload the schedule.
// -----------------------------------------------------------------------------

type IScheduleControl interface {
	Snapshot() models.MProducerSchedule

	// Reload re-reads the schedule source. It fails when there is none.
	Reload() error
}

// -----------------------------------------------------------------------------
// IClock supplies the current time of the execution context.
// -----------------------------------------------------------------------------

type IClock interface {
	Now() time.Time
}

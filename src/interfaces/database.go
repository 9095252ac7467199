package interfaces

import (
	"context"
	"time"

	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the oracle tables.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the backend and creates missing tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// Begin starts a transaction. Writers are serialized by the backend.
	Begin(ctx context.Context) (ITx, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------
// ITx is one atomic unit of work over the three oracle tables: pairs,
// submissions (by producer) and published prices (by pair).
// Getters return (nil, nil) when the row does not exist.
// -----------------------------------------------------------------------------

type ITx interface {
	ListPairs() ([]string, error)
	HasPair(pair string) (bool, error)
	InsertPair(pair string, createdAt time.Time) error

	GetSubmission(producer string) (*models.MSubmission, error)
	PutSubmission(sub models.MSubmission) error
	ListSubmissions() ([]models.MSubmission, error)

	GetPublishedPrice(pair string) (*models.MPublishedPrice, error)
	PutPublishedPrice(price models.MPublishedPrice) error
	ListPublishedPrices() ([]models.MPublishedPrice, error)

	// Commit makes every write visible. Rollback after Commit is a no-op.
	Commit() error
	Rollback() error
}

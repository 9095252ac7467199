package interfaces

import (
	"context"

	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// IOracleService is what the transports need from the oracle.
// -----------------------------------------------------------------------------

type IOracleService interface {
	RegisterPair(ctx context.Context, caller, pair string) error
	SubmitPrices(ctx context.Context, producer string, pairsData map[string]float64) (models.MSubmitResult, error)

	// -----------------------------------------------------------------------------

	Current(ctx context.Context, pair string) (*models.MPublishedPrice, error)
	ListPairs(ctx context.Context) ([]string, error)
	ListPrices(ctx context.Context) ([]models.MPublishedPrice, error)
	Submission(ctx context.Context, producer string) (*models.MSubmission, error)
	Status(ctx context.Context) (models.MOracleStatus, error)
}

package interfaces

import "price-oracle/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defining the interface for sharing data with external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a price update to feed subscribers.
	Broadcast(update *models.MPriceUpdate)

	// -----------------------------------------------------------------------------
	// UpdateAllDatas replaces the snapshot sent to new subscribers without broadcasting.
	UpdateAllDatas(prices []models.MPublishedPrice)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}

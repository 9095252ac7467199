package oracle

import (
	"sort"
	"time"

	"price-oracle/src/interfaces"
	"price-oracle/src/models"
)

// -----------------------------------------------------------------------------
// PublishedPriceStore holds the consensus price and its history per pair.
// -----------------------------------------------------------------------------

type PublishedPriceStore struct {
	tx interfaces.ITx
}

func NewPublishedPriceStore(tx interfaces.ITx) *PublishedPriceStore {
	return &PublishedPriceStore{tx: tx}
}

// -----------------------------------------------------------------------------

// Publish overwrites the pair's price and history and stamps it with now.
func (p *PublishedPriceStore) Publish(pair string, price float64, points []float64, now time.Time) (models.MPublishedPrice, error) {
	row := models.MPublishedPrice{
		Pair:        pair,
		Price:       price,
		PricePoints: points,
		LastUpdate:  now,
	}.Clone()

	if err := p.tx.PutPublishedPrice(row); err != nil {
		return models.MPublishedPrice{}, err
	}
	return row, nil
}

// -----------------------------------------------------------------------------

// Current returns the published row for pair, or nil if it never reached quorum.
func (p *PublishedPriceStore) Current(pair string) (*models.MPublishedPrice, error) {
	return p.tx.GetPublishedPrice(pair)
}

// -----------------------------------------------------------------------------

// History returns the accepted points for pair, empty if never published.
func (p *PublishedPriceStore) History(pair string) ([]float64, error) {
	row, err := p.tx.GetPublishedPrice(pair)
	if err != nil || row == nil {
		return nil, err
	}
	return row.PricePoints, nil
}

// -----------------------------------------------------------------------------

// List returns every published row ordered by pair.
func (p *PublishedPriceStore) List() ([]models.MPublishedPrice, error) {
	rows, err := p.tx.ListPublishedPrices()
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pair < rows[j].Pair })
	return rows, nil
}

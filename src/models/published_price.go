package models

import "time"

// MPublishedPrice is the consensus price of a pair together with the rolling
// history of accepted round values it was smoothed from.
type MPublishedPrice struct {
	Pair        string    `json:"pair"`
	Price       float64   `json:"price"`
	PricePoints []float64 `json:"price_points"`
	LastUpdate  time.Time `json:"last_update"`
}

// Clone returns a copy that shares no slice with the receiver.
func (p MPublishedPrice) Clone() MPublishedPrice {
	out := p
	out.PricePoints = append([]float64(nil), p.PricePoints...)
	return out
}

package core

import "math"

// -----------------------------------------------------------------------------

// RoundStats summarizes the prices reported for one pair in one round.
type RoundStats struct {
	Count  int
	Low    float64
	High   float64
	Mean   float64
	Std    float64
	Median float64
}

// -----------------------------------------------------------------------------

// ComputeRoundStats calculates the round summary from an ascending slice.
func ComputeRoundStats(sorted []float64) RoundStats {
	if len(sorted) == 0 {
		return RoundStats{}
	}

	low := math.MaxFloat64
	high := -math.MaxFloat64
	for _, p := range sorted {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}

	mean, std := CalculateMeanStd(sorted)

	return RoundStats{
		Count:  len(sorted),
		Low:    low,
		High:   high,
		Mean:   mean,
		Std:    std,
		Median: Median(sorted),
	}
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}

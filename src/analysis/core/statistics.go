package core

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------

// Median returns the median of an ascending slice: the central element for odd
// lengths, the mean of the two central elements for even lengths. The input is
// not sorted here. An empty slice yields 0.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// -----------------------------------------------------------------------------

// TrimCount is how many values SubsetMedian drops from each tail of n points.
func TrimCount(n int) int {
	return n / 4
}

// -----------------------------------------------------------------------------

// SubsetMedian sorts a copy of points, drops TrimCount(len) values from each
// tail and returns the median of what is left.
func SubsetMedian(points []float64) float64 {
	if len(points) == 0 {
		return 0
	}

	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)

	k := TrimCount(len(sorted))
	return Median(sorted[k : len(sorted)-k])
}

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	// Calculate mean
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	// Calculate standard deviation with N denominator (population std)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}

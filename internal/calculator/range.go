package calculator

import (
	"errors"
	"math"
)

// MinMax returns the smallest and largest value.
func MinMax(values []float64) (low, high float64, err error) {
	if len(values) == 0 {
		return 0, 0, errors.New("no values provided")
	}
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, v := range values {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high, nil
}

// DistinctCount returns how many different values appear.
func DistinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

package calculator

import (
	"errors"
	"math"
	"sort"
)

// Mean returns the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values provided")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) (float64, error) {
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values))), nil
}

// SampleStdDev returns the sample standard deviation (n-1 denominator).
func SampleStdDev(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("need at least 2 values")
	}
	mean, _ := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), nil
}

// RMS returns the root mean square of the values.
func RMS(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values provided")
	}
	ss := 0.0
	for _, v := range values {
		ss += v * v
	}
	return math.Sqrt(ss / float64(len(values))), nil
}

// Standardize returns z-scores of the values along with the mean and
// standard deviation used. A constant column maps to all zeros.
func Standardize(values []float64) (z []float64, mean, std float64, err error) {
	mean, err = Mean(values)
	if err != nil {
		return nil, 0, 0, err
	}
	std, _ = StdDev(values)
	z = make([]float64, len(values))
	if std == 0 {
		return z, mean, std, nil
	}
	for i, v := range values {
		z[i] = (v - mean) / std
	}
	return z, mean, std, nil
}

// RankBins splits values into equal-population quantile bins using rank
// boundaries. Equal values are ordered by key, so the result only depends on
// the (value, key) pairs. Bin numbers run from 1 (smallest values) to the
// applied bin count, which is bins capped at the number of distinct values.
func RankBins(values []float64, keys []string, bins int) (out []int, applied int, err error) {
	if bins <= 0 {
		return nil, 0, errors.New("bins must be positive")
	}
	if len(values) != len(keys) {
		return nil, 0, errors.New("values and keys differ in length")
	}
	n := len(values)
	if n == 0 {
		return nil, 0, errors.New("no values provided")
	}
	applied = bins
	if d := DistinctCount(values); d < applied {
		applied = d
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := values[order[a]], values[order[b]]
		if va != vb {
			return va < vb
		}
		return keys[order[a]] < keys[order[b]]
	})

	out = make([]int, n)
	for rank, idx := range order {
		out[idx] = rank*applied/n + 1
	}
	return out, applied, nil
}

package forecast

import (
	"fmt"

	"ShopLens/internal/calculator"
	"ShopLens/internal/model"
)

// Forecasting methods.
const (
	MethodHolt          = "holt"
	MethodHoltWinters   = "holt_winters"
	MethodMovingAverage = "moving_average"
)

// fitted is a model fit over the history: project returns the point forecast
// h buckets after the last observation, residuals are one-step-ahead errors.
type fitted struct {
	project   func(h int) float64
	residuals []float64
}

// holt fits double exponential smoothing (level and trend). The initial
// trend is taken from y[1], so residuals start at t=2. With fewer than two
// of them the deviations of the history from its mean are used instead.
func holt(y []float64, alpha, beta float64) fitted {
	level, trend := y[0], y[1]-y[0]
	var residuals []float64
	for t := 1; t < len(y); t++ {
		if t >= 2 {
			residuals = append(residuals, y[t]-(level+trend))
		}
		prev := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
	}
	if len(residuals) < 2 {
		mean, _ := calculator.Mean(y)
		residuals = residuals[:0]
		for _, v := range y {
			residuals = append(residuals, v-mean)
		}
	}
	return fitted{
		project:   func(h int) float64 { return level + float64(h)*trend },
		residuals: residuals,
	}
}

// holtWinters fits additive triple exponential smoothing with season length m.
// The history must cover at least two seasons.
func holtWinters(y []float64, m int, alpha, beta, gamma float64) (fitted, error) {
	if m < 2 || len(y) < 2*m {
		return fitted{}, fmt.Errorf("%w: holt-winters needs two seasons of %d buckets, have %d",
			model.ErrInsufficientHistory, m, len(y))
	}
	first, _ := calculator.Mean(y[:m])
	second, _ := calculator.Mean(y[m : 2*m])
	level := first
	trend := (second - first) / float64(m)
	season := make([]float64, len(y))
	for i := 0; i < m; i++ {
		season[i] = y[i] - first
	}

	var residuals []float64
	for t := m; t < len(y); t++ {
		pred := level + trend + season[t-m]
		residuals = append(residuals, y[t]-pred)
		prev := level
		level = alpha*(y[t]-season[t-m]) + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
		season[t] = gamma*(y[t]-level) + (1-gamma)*season[t-m]
	}
	n := len(y)
	return fitted{
		project: func(h int) float64 {
			return level + float64(h)*trend + season[n-m+(h-1)%m]
		},
		residuals: residuals,
	}, nil
}

// movingAverage projects the trailing mean of the last window buckets.
func movingAverage(y []float64, window int) fitted {
	if window > len(y) {
		window = len(y)
	}
	last, _ := calculator.CalculateSMA(y, window)
	var residuals []float64
	for t := window; t < len(y); t++ {
		prior, _ := calculator.CalculateSMA(y[:t], window)
		residuals = append(residuals, y[t]-prior)
	}
	if len(residuals) == 0 {
		// No out-of-window observation: fall back to deviations from the mean.
		for _, v := range y {
			residuals = append(residuals, v-last)
		}
	}
	return fitted{
		project:   func(int) float64 { return last },
		residuals: residuals,
	}
}

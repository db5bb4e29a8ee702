package forecast

import (
	"fmt"
	"log"
	"math"
	"time"

	"ShopLens/internal/calculator"
	"ShopLens/internal/model"
)

const (
	DefaultHorizon    = 3
	DefaultAlpha      = 0.5
	DefaultBeta       = 0.3
	DefaultGamma      = 0.1
	DefaultWindow     = 3
	DefaultConfidence = 0.95
)

// zScores maps supported two-sided confidence levels to normal quantiles.
var zScores = map[float64]float64{
	0.80: 1.2816,
	0.90: 1.6449,
	0.95: 1.9600,
	0.99: 2.5758,
}

// SupportsConfidence reports whether c is one of the supported confidence
// levels (0.80, 0.90, 0.95, 0.99).
func SupportsConfidence(c float64) bool {
	_, ok := zScores[c]
	return ok
}

// Options configures a forecast. Zero values select the defaults; Horizon,
// smoothing factors and Window are rejected when negative or out of range.
type Options struct {
	Granularity   model.Granularity
	Horizon       int
	Method        string
	Alpha         float64
	Beta          float64
	Gamma         float64
	SeasonLength  int
	Window        int
	Confidence    float64
	ReferenceDate time.Time // default: latest transaction + 1 day
}

func (o *Options) applyDefaults(ds *model.Dataset) error {
	if o.Granularity == "" {
		o.Granularity = model.Monthly
	}
	if _, err := ParseGranularity(string(o.Granularity)); err != nil {
		return err
	}
	if o.Method == "" {
		o.Method = MethodHolt
	}
	switch o.Method {
	case MethodHolt, MethodHoltWinters, MethodMovingAverage:
	default:
		return fmt.Errorf("%w: unknown forecast method %q", model.ErrInvalidParameter, o.Method)
	}
	if o.Horizon == 0 {
		o.Horizon = DefaultHorizon
	}
	if o.Horizon < 1 {
		return fmt.Errorf("%w: horizon must be positive, got %d", model.ErrInvalidParameter, o.Horizon)
	}
	for _, f := range []struct {
		name string
		v    *float64
		def  float64
	}{
		{"alpha", &o.Alpha, DefaultAlpha},
		{"beta", &o.Beta, DefaultBeta},
		{"gamma", &o.Gamma, DefaultGamma},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
		if *f.v < 0 || *f.v > 1 {
			return fmt.Errorf("%w: %s must be in (0,1], got %g", model.ErrInvalidParameter, f.name, *f.v)
		}
	}
	if o.Window == 0 {
		o.Window = DefaultWindow
	}
	if o.Window < 1 {
		return fmt.Errorf("%w: window must be positive, got %d", model.ErrInvalidParameter, o.Window)
	}
	if o.Confidence == 0 {
		o.Confidence = DefaultConfidence
	}
	if _, ok := zScores[o.Confidence]; !ok {
		return fmt.Errorf("%w: unsupported confidence level %g", model.ErrInvalidParameter, o.Confidence)
	}
	if o.SeasonLength < 0 {
		return fmt.Errorf("%w: season length must not be negative", model.ErrInvalidParameter)
	}
	if o.ReferenceDate.IsZero() {
		o.ReferenceDate = ds.DefaultReferenceDate()
	}
	o.ReferenceDate = o.ReferenceDate.UTC()
	return nil
}

// Forecast aggregates revenue per bucket and projects Horizon buckets ahead.
func Forecast(ds *model.Dataset, opts Options) (*model.ForecastResult, error) {
	if err := opts.applyDefaults(ds); err != nil {
		return nil, err
	}
	history, err := aggregate(ds, opts.Granularity, opts.Window)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: %d %s bucket(s), need at least 2",
			model.ErrInsufficientHistory, len(history), opts.Granularity)
	}

	y := make([]float64, len(history))
	for i, p := range history {
		y[i] = p.Revenue
	}

	method := opts.Method
	var fit fitted
	switch method {
	case MethodMovingAverage:
		fit = movingAverage(y, opts.Window)
	case MethodHoltWinters:
		fit, err = holtWinters(y, opts.SeasonLength, opts.Alpha, opts.Beta, opts.Gamma)
		if err != nil {
			log.Printf("[WARN] forecast: %v, falling back to %s", err, MethodHolt)
			method = MethodHolt
			fit = holt(y, opts.Alpha, opts.Beta)
		}
	default:
		fit = holt(y, opts.Alpha, opts.Beta)
	}

	sigma, _ := calculator.RMS(fit.residuals)
	z := zScores[opts.Confidence]

	points := make([]model.ForecastPoint, opts.Horizon)
	period := history[len(history)-1].Period
	for h := 1; h <= opts.Horizon; h++ {
		period = nextBucket(period, opts.Granularity)
		value := math.Max(fit.project(h), 0)
		half := z * sigma * math.Sqrt(float64(h))
		points[h-1] = model.ForecastPoint{
			Period: period,
			Value:  value,
			Lower:  math.Max(value-half, 0),
			Upper:  value + half,
		}
	}

	return &model.ForecastResult{
		SnapshotID:     ds.SnapshotID,
		ReferenceDate:  opts.ReferenceDate,
		Granularity:    opts.Granularity,
		Method:         method,
		Confidence:     opts.Confidence,
		ResidualStdDev: sigma,
		History:        history,
		Points:         points,
	}, nil
}

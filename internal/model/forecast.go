package model

import "time"

// Granularity is the width of a forecasting bucket.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// SeriesPoint is one historical bucket.
type SeriesPoint struct {
	Period    time.Time `json:"period"`
	Revenue   float64   `json:"revenue"`
	Orders    int       `json:"orders"`
	Customers int       `json:"customers"`
	Units     int       `json:"units"`
	MovingAvg float64   `json:"moving_avg"`
	GrowthPct float64   `json:"growth_pct"`
}

// ForecastPoint is a projected bucket. Lower <= Value <= Upper.
type ForecastPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
	Lower  float64   `json:"lower"`
	Upper  float64   `json:"upper"`
}

// ForecastResult is the output of the forecasting engine.
type ForecastResult struct {
	SnapshotID     string
	ReferenceDate  time.Time
	Granularity    Granularity
	Method         string
	Confidence     float64
	ResidualStdDev float64
	History        []SeriesPoint
	Points         []ForecastPoint
}

package model

import "time"

// ChurnRisk bands a customer by days since the last purchase.
type ChurnRisk string

const (
	ChurnLow     ChurnRisk = "LOW"
	ChurnMedium  ChurnRisk = "MEDIUM"
	ChurnHigh    ChurnRisk = "HIGH"
	ChurnChurned ChurnRisk = "CHURNED"
)

// CustomerProfile aggregates one customer's transactions relative to a reference date.
type CustomerProfile struct {
	CustomerID    string    `json:"customer_id"`
	RecencyDays   int       `json:"recency_days"`
	Frequency     int       `json:"frequency"`
	Monetary      float64   `json:"monetary"`
	Units         int       `json:"units"`
	FirstPurchase time.Time `json:"first_purchase"`
	LastPurchase  time.Time `json:"last_purchase"`
	AvgOrderValue float64   `json:"avg_order_value"`
	LifespanDays  int       `json:"lifespan_days"`
	ChurnRisk     ChurnRisk `json:"churn_risk"`

	// Purchase patterns over transaction lines.
	AvgDaysBetween   float64 `json:"avg_days_between"`
	AvgLineAmount    float64 `json:"avg_line_amount"`
	LineAmountStdDev float64 `json:"line_amount_stddev"`
}

// RFMScore holds the ordinal scores of one customer.
type RFMScore struct {
	CustomerID string `json:"customer_id"`
	R          int    `json:"r"`
	F          int    `json:"f"`
	M          int    `json:"m"`
	Combined   int    `json:"combined"`
	Code       string `json:"code"`
	Tier       string `json:"tier"`
}

// BinReduction records a dimension scored with fewer bins than requested.
type BinReduction struct {
	Dimension string `json:"dimension"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

// RFMResult is the output of the RFM calculator. Profiles and Scores share
// the same order (ascending customer id).
type RFMResult struct {
	SnapshotID    string
	ReferenceDate time.Time
	Bins          int
	Profiles      []CustomerProfile
	Scores        []RFMScore
	Reductions    []BinReduction
}

package model

import "time"

// CohortRow groups customers by the month of their first purchase and
// tracks how many of them buy again in each later month.
type CohortRow struct {
	Cohort    time.Time `json:"cohort"` // first day of the month, UTC
	Size      int       `json:"size"`
	Active    []int     `json:"active"`    // index i: customers buying i months after the cohort month
	Retention []float64 `json:"retention"` // Active[i] / Size * 100
	Revenue   float64   `json:"revenue"`
	LTVAvg    float64   `json:"ltv_avg"` // revenue per cohort customer
}

// ProductSummary aggregates the lines of one product.
type ProductSummary struct {
	ProductID string  `json:"product_id"`
	Revenue   float64 `json:"revenue"`
	Units     int     `json:"units"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
}

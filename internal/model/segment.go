package model

import "time"

// FeatureMode selects the vectors the segmentation engine clusters on.
type FeatureMode string

const (
	FeaturesRaw    FeatureMode = "RAW"
	FeaturesScores FeatureMode = "SCORES"
)

// Centroid is the mean RFM vector of a segment in raw units.
type Centroid struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Monetary  float64 `json:"monetary"`
}

// Segment is a named cluster of customers.
type Segment struct {
	Name        string   `json:"name"`
	Rank        int      `json:"rank"`
	CustomerIDs []string `json:"customer_ids"`
	Centroid    Centroid `json:"centroid"`
	Size        int      `json:"size"`
}

// SegmentResult is the output of one segmentation fit.
type SegmentResult struct {
	SnapshotID    string
	ReferenceDate time.Time
	K             int
	Seed          int64
	Features      FeatureMode
	Iterations    int
	Inertia       float64
	Converged     bool
	Segments      []Segment         // rank order, best first
	Assignments   map[string]string // customer id -> segment name
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one validated purchase line.
type Transaction struct {
	CustomerID string
	OrderID    string
	ProductID  string
	Timestamp  time.Time
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// Amount returns the line total as a float for the numeric stages.
func (t Transaction) Amount() float64 {
	f, _ := t.LineTotal.Float64()
	return f
}

// Dataset is the validated transaction snapshot shared read-only by every
// stage of one analysis run.
type Dataset struct {
	SnapshotID   string
	Source       string
	LoadedAt     time.Time
	Transactions []Transaction // sorted by timestamp, order id, customer id
	RowsRead     int
	RowsDropped  int
	DropReasons  map[string]int
	MinTime      time.Time
	MaxTime      time.Time
}

// DatasetSummary is the part of a Dataset carried into a report.
type DatasetSummary struct {
	SnapshotID   string         `json:"snapshot_id"`
	Source       string         `json:"source"`
	LoadedAt     time.Time      `json:"loaded_at"`
	Transactions int            `json:"transactions"`
	RowsRead     int            `json:"rows_read"`
	RowsDropped  int            `json:"rows_dropped"`
	DropReasons  map[string]int `json:"drop_reasons,omitempty"`
	MinTime      time.Time      `json:"min_time"`
	MaxTime      time.Time      `json:"max_time"`
	Revenue      float64        `json:"revenue"`
}

// Summary condenses the dataset for reporting.
func (d *Dataset) Summary() DatasetSummary {
	revenue := decimal.Zero
	for _, t := range d.Transactions {
		revenue = revenue.Add(t.LineTotal)
	}
	rev, _ := revenue.Float64()
	reasons := make(map[string]int, len(d.DropReasons))
	for k, v := range d.DropReasons {
		reasons[k] = v
	}
	return DatasetSummary{
		SnapshotID:   d.SnapshotID,
		Source:       d.Source,
		LoadedAt:     d.LoadedAt,
		Transactions: len(d.Transactions),
		RowsRead:     d.RowsRead,
		RowsDropped:  d.RowsDropped,
		DropReasons:  reasons,
		MinTime:      d.MinTime,
		MaxTime:      d.MaxTime,
		Revenue:      rev,
	}
}

// DefaultReferenceDate is the reference date used when a run does not set
// one: one day after the latest transaction.
func (d *Dataset) DefaultReferenceDate() time.Time {
	return d.MaxTime.AddDate(0, 0, 1)
}

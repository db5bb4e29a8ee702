package rfm

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func tx(customer, order string, daysAgo int, qty int, price float64) model.Transaction {
	p := decimal.NewFromFloat(price)
	return model.Transaction{
		CustomerID: customer,
		OrderID:    order,
		Timestamp:  base.AddDate(0, 0, -daysAgo),
		Quantity:   qty,
		UnitPrice:  p,
		LineTotal:  p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func dataset(txs ...model.Transaction) *model.Dataset {
	ds := &model.Dataset{SnapshotID: "snap-1", Transactions: txs}
	for i, t := range txs {
		if i == 0 || t.Timestamp.Before(ds.MinTime) {
			ds.MinTime = t.Timestamp
		}
		if i == 0 || t.Timestamp.After(ds.MaxTime) {
			ds.MaxTime = t.Timestamp
		}
	}
	return ds
}

func TestCalculate_RecentHighValueBeatsOldLowValue(t *testing.T) {
	ds := dataset(
		tx("A", "O1", 1, 1, 500),
		tx("B", "O2", 200, 1, 5),
	)
	res, err := Calculate(ds, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, b := res.Scores[0], res.Scores[1]
	if a.CustomerID != "A" || b.CustomerID != "B" {
		t.Fatalf("scores should be ordered by customer id: %+v", res.Scores)
	}
	if a.Combined <= b.Combined {
		t.Errorf("expected A (%d) to outscore B (%d)", a.Combined, b.Combined)
	}
	if a.R <= b.R || a.M <= b.M {
		t.Errorf("expected A to win on recency and monetary: %+v vs %+v", a, b)
	}
}

func TestCalculate_DefaultReferenceDate(t *testing.T) {
	ds := dataset(tx("A", "O1", 0, 1, 10), tx("B", "O2", 10, 1, 10))
	res, err := Calculate(ds, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ReferenceDate.Equal(base.AddDate(0, 0, 1)) {
		t.Errorf("expected reference date %v, got %v", base.AddDate(0, 0, 1), res.ReferenceDate)
	}
	if res.Profiles[0].RecencyDays != 1 || res.Profiles[1].RecencyDays != 11 {
		t.Errorf("unexpected recency: %d, %d", res.Profiles[0].RecencyDays, res.Profiles[1].RecencyDays)
	}
}

func TestCalculate_ReferenceBeforeLastTransaction(t *testing.T) {
	ds := dataset(tx("A", "O1", 0, 1, 10), tx("B", "O2", 10, 1, 10))
	_, err := Calculate(ds, Options{ReferenceDate: base.AddDate(0, 0, -5)})
	if !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestCalculate_InsufficientData(t *testing.T) {
	ds := dataset(tx("A", "O1", 0, 1, 10), tx("A", "O2", 3, 2, 10))
	_, err := Calculate(ds, Options{})
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCalculate_InvalidBins(t *testing.T) {
	ds := dataset(tx("A", "O1", 0, 1, 10), tx("B", "O2", 3, 2, 10))
	if _, err := Calculate(ds, Options{Bins: -1}); !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestCalculate_ProfileAggregation(t *testing.T) {
	ds := dataset(
		tx("A", "O1", 30, 2, 10),
		tx("A", "O1", 30, 1, 5),
		tx("A", "O2", 2, 1, 15),
		tx("B", "O3", 1, 1, 1),
	)
	res, err := Calculate(ds, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := res.Profiles[0]
	if p.Frequency != 2 {
		t.Errorf("expected 2 distinct orders, got %d", p.Frequency)
	}
	if p.Monetary != 40 {
		t.Errorf("expected monetary 40, got %.2f", p.Monetary)
	}
	if p.Units != 4 || p.AvgOrderValue != 20 || p.LifespanDays != 28 {
		t.Errorf("unexpected lifetime metrics: %+v", p)
	}
	if p.RecencyDays != 2 || p.ChurnRisk != model.ChurnLow {
		t.Errorf("unexpected recency/churn: %+v", p)
	}
	if p.AvgDaysBetween != 28 {
		t.Errorf("expected 28 days between orders, got %.2f", p.AvgDaysBetween)
	}
	if math.Abs(p.AvgLineAmount-40.0/3) > 1e-9 {
		t.Errorf("expected average line amount 13.33, got %.4f", p.AvgLineAmount)
	}
	if math.Abs(p.LineAmountStdDev-7.6376) > 1e-4 {
		t.Errorf("expected line amount stddev 7.6376, got %.4f", p.LineAmountStdDev)
	}
	single := res.Profiles[1]
	if single.AvgDaysBetween != 0 || single.LineAmountStdDev != 0 || single.AvgLineAmount != 1 {
		t.Errorf("unexpected single-order patterns: %+v", single)
	}
}

func TestCalculate_PartitionAndDeterminism(t *testing.T) {
	var txs []model.Transaction
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("C%02d", i)
		for j := 0; j <= i%4; j++ {
			txs = append(txs, tx(id, fmt.Sprintf("%s-%d", id, j), (i*7)%90+j, 1+j, float64(10+i*3)))
		}
	}
	ds := dataset(txs...)
	first, err := Calculate(ds, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Scores) != 40 || len(first.Profiles) != 40 {
		t.Fatalf("expected 40 scores and profiles, got %d/%d", len(first.Scores), len(first.Profiles))
	}
	seen := map[string]bool{}
	for i, s := range first.Scores {
		if seen[s.CustomerID] {
			t.Fatalf("customer %s scored twice", s.CustomerID)
		}
		seen[s.CustomerID] = true
		if s.CustomerID != first.Profiles[i].CustomerID {
			t.Fatalf("scores and profiles out of order at %d", i)
		}
		for _, v := range []int{s.R, s.F, s.M} {
			if v < 1 || v > 5 {
				t.Errorf("score out of range: %+v", s)
			}
		}
	}
	second, _ := Calculate(ds, Options{})
	if !reflect.DeepEqual(first.Scores, second.Scores) {
		t.Error("scoring is not deterministic")
	}
}

func TestCalculate_RecencyMonotonic(t *testing.T) {
	// Same frequency and monetary value, increasing days since purchase.
	var txs []model.Transaction
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(fmt.Sprintf("C%02d", i), fmt.Sprintf("O%02d", i), i*10, 1, 50))
	}
	res, err := Calculate(dataset(txs...), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(res.Scores); i++ {
		if res.Profiles[i].RecencyDays <= res.Profiles[i-1].RecencyDays {
			t.Fatalf("test data should have increasing recency")
		}
		if res.Scores[i].R > res.Scores[i-1].R {
			t.Errorf("recency score increased from %d to %d as days grew", res.Scores[i-1].R, res.Scores[i].R)
		}
	}
	if res.Scores[0].R != 5 || res.Scores[11].R != 1 {
		t.Errorf("expected recency scores to span 5..1, got %d..%d", res.Scores[0].R, res.Scores[11].R)
	}
}

func TestCalculate_BinReductionReported(t *testing.T) {
	ds := dataset(
		tx("A", "O1", 1, 1, 10),
		tx("B", "O2", 2, 1, 10),
		tx("C", "O3", 3, 1, 20),
	)
	res, err := Calculate(ds, Options{Bins: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string]int{}
	for _, r := range res.Reductions {
		got[r.Dimension] = r.Applied
	}
	want := map[string]int{"recency": 3, "frequency": 1, "monetary": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected reductions %v, got %v", want, got)
	}
	for _, s := range res.Scores {
		if s.F != 1 {
			t.Errorf("single frequency value should score 1, got %d", s.F)
		}
	}
}

func TestChurnBand(t *testing.T) {
	tests := []struct {
		days int
		want model.ChurnRisk
	}{
		{0, model.ChurnLow},
		{30, model.ChurnLow},
		{31, model.ChurnMedium},
		{60, model.ChurnMedium},
		{90, model.ChurnHigh},
		{91, model.ChurnChurned},
	}
	for _, tt := range tests {
		if got := churnBand(tt.days, 90); got != tt.want {
			t.Errorf("days %d: expected %s, got %s", tt.days, tt.want, got)
		}
	}
}

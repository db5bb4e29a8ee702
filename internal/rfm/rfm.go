package rfm

import (
	"fmt"
	"log"
	"sort"
	"time"

	"ShopLens/internal/calculator"
	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

const (
	DefaultBins      = 5
	DefaultChurnDays = 90
)

// Options configures one RFM calculation. Zero values select the defaults.
type Options struct {
	ReferenceDate time.Time // default: latest transaction + 1 day
	Bins          int
	ChurnDays     int
}

type aggregate struct {
	first, last time.Time
	orders      map[string]struct{}
	monetary    decimal.Decimal
	units       int
	amounts     []float64
}

// Calculate builds per-customer profiles and quantile scores.
func Calculate(ds *model.Dataset, opts Options) (*model.RFMResult, error) {
	bins := opts.Bins
	if bins == 0 {
		bins = DefaultBins
	}
	if bins < 1 {
		return nil, fmt.Errorf("%w: rfm bins must be positive, got %d", model.ErrInvalidParameter, bins)
	}
	churnDays := opts.ChurnDays
	if churnDays == 0 {
		churnDays = DefaultChurnDays
	}
	if churnDays < 3 {
		return nil, fmt.Errorf("%w: churn days must be at least 3, got %d", model.ErrInvalidParameter, churnDays)
	}
	ref := opts.ReferenceDate
	if ref.IsZero() {
		ref = ds.DefaultReferenceDate()
	}
	ref = ref.UTC()
	if ref.Before(ds.MaxTime) {
		return nil, fmt.Errorf("%w: reference date %s precedes last transaction %s",
			model.ErrInvalidParameter, ref.Format(time.RFC3339), ds.MaxTime.Format(time.RFC3339))
	}

	aggs := map[string]*aggregate{}
	for _, t := range ds.Transactions {
		a, ok := aggs[t.CustomerID]
		if !ok {
			a = &aggregate{first: t.Timestamp, last: t.Timestamp, orders: map[string]struct{}{}}
			aggs[t.CustomerID] = a
		}
		if t.Timestamp.Before(a.first) {
			a.first = t.Timestamp
		}
		if t.Timestamp.After(a.last) {
			a.last = t.Timestamp
		}
		a.orders[t.OrderID] = struct{}{}
		a.monetary = a.monetary.Add(t.LineTotal)
		a.units += t.Quantity
		a.amounts = append(a.amounts, t.Amount())
	}
	if len(aggs) < 2 {
		return nil, fmt.Errorf("%w: rfm scoring needs at least 2 customers, got %d", model.ErrInsufficientData, len(aggs))
	}

	ids := make([]string, 0, len(aggs))
	for id := range aggs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	profiles := make([]model.CustomerProfile, len(ids))
	recency := make([]float64, len(ids))
	frequency := make([]float64, len(ids))
	monetary := make([]float64, len(ids))
	for i, id := range ids {
		a := aggs[id]
		m, _ := a.monetary.Float64()
		days := int(ref.Sub(a.last) / (24 * time.Hour))
		p := model.CustomerProfile{
			CustomerID:    id,
			RecencyDays:   days,
			Frequency:     len(a.orders),
			Monetary:      m,
			Units:         a.units,
			FirstPurchase: a.first,
			LastPurchase:  a.last,
			AvgOrderValue: m / float64(len(a.orders)),
			LifespanDays:  int(a.last.Sub(a.first) / (24 * time.Hour)),
			ChurnRisk:     churnBand(days, churnDays),
		}
		purchasePatterns(&p, a.amounts)
		profiles[i] = p
		recency[i] = float64(p.RecencyDays)
		frequency[i] = float64(p.Frequency)
		monetary[i] = p.Monetary
	}

	result := &model.RFMResult{
		SnapshotID:    ds.SnapshotID,
		ReferenceDate: ref,
		Bins:          bins,
		Profiles:      profiles,
	}

	rBins, err := scoreDimension(result, "recency", recency, ids, bins)
	if err != nil {
		return nil, err
	}
	fBins, err := scoreDimension(result, "frequency", frequency, ids, bins)
	if err != nil {
		return nil, err
	}
	mBins, err := scoreDimension(result, "monetary", monetary, ids, bins)
	if err != nil {
		return nil, err
	}
	rApplied := appliedBins(result, "recency", bins)
	maxCombined := rApplied + appliedBins(result, "frequency", bins) + appliedBins(result, "monetary", bins)

	result.Scores = make([]model.RFMScore, len(ids))
	for i, id := range ids {
		// Recency bins ascend with days since purchase, so the score is inverted.
		r := rApplied + 1 - rBins[i]
		f, m := fBins[i], mBins[i]
		result.Scores[i] = model.RFMScore{
			CustomerID: id,
			R:          r,
			F:          f,
			M:          m,
			Combined:   r + f + m,
			Code:       fmt.Sprintf("%d%d%d", r, f, m),
			Tier:       mapTier(r+f+m, maxCombined),
		}
	}
	return result, nil
}

func scoreDimension(res *model.RFMResult, name string, values []float64, ids []string, bins int) ([]int, error) {
	out, applied, err := calculator.RankBins(values, ids, bins)
	if err != nil {
		return nil, fmt.Errorf("%s bins: %w", name, err)
	}
	if applied < bins {
		log.Printf("[WARN] rfm %s: only %d distinct values, bins reduced from %d to %d", name, applied, bins, applied)
		res.Reductions = append(res.Reductions, model.BinReduction{Dimension: name, Requested: bins, Applied: applied})
	}
	return out, nil
}

func appliedBins(res *model.RFMResult, dimension string, bins int) int {
	for _, red := range res.Reductions {
		if red.Dimension == dimension {
			return red.Applied
		}
	}
	return bins
}

func churnBand(days, threshold int) model.ChurnRisk {
	switch {
	case days <= threshold/3:
		return model.ChurnLow
	case days <= 2*threshold/3:
		return model.ChurnMedium
	case days <= threshold:
		return model.ChurnHigh
	default:
		return model.ChurnChurned
	}
}

// purchasePatterns fills the average gap between orders and the spread of
// line amounts. A single order has no gap; a single line has no spread.
func purchasePatterns(p *model.CustomerProfile, amounts []float64) {
	if p.Frequency > 1 {
		p.AvgDaysBetween = float64(p.LifespanDays) / float64(p.Frequency-1)
	}
	p.AvgLineAmount, _ = calculator.Mean(amounts)
	if len(amounts) > 1 {
		p.LineAmountStdDev, _ = calculator.SampleStdDev(amounts)
	}
}

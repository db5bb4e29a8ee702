package forecast

import (
	"fmt"
	"time"

	"ShopLens/internal/calculator"
	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

// ParseGranularity accepts daily, weekly or monthly.
func ParseGranularity(s string) (model.Granularity, error) {
	switch g := model.Granularity(s); g {
	case model.Daily, model.Weekly, model.Monthly:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown granularity %q", model.ErrInvalidParameter, s)
}

// bucketStart truncates t (UTC) to the start of its bucket. Weeks start on Monday.
func bucketStart(t time.Time, g model.Granularity) time.Time {
	t = t.UTC()
	switch g {
	case model.Weekly:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case model.Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(t time.Time, g model.Granularity) time.Time {
	switch g {
	case model.Weekly:
		return t.AddDate(0, 0, 7)
	case model.Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

type bucketAgg struct {
	revenue   decimal.Decimal
	orders    map[string]struct{}
	customers map[string]struct{}
	units     int
}

// aggregate sums the dataset into one point per bucket from the first to the
// last bucket holding a transaction. Buckets without sales are zero, not
// interpolated.
func aggregate(ds *model.Dataset, g model.Granularity, window int) ([]model.SeriesPoint, error) {
	if len(ds.Transactions) == 0 {
		return nil, nil
	}
	aggs := map[time.Time]*bucketAgg{}
	for _, t := range ds.Transactions {
		b := bucketStart(t.Timestamp, g)
		a, ok := aggs[b]
		if !ok {
			a = &bucketAgg{orders: map[string]struct{}{}, customers: map[string]struct{}{}}
			aggs[b] = a
		}
		a.revenue = a.revenue.Add(t.LineTotal)
		a.orders[t.CustomerID+"\x00"+t.OrderID] = struct{}{}
		a.customers[t.CustomerID] = struct{}{}
		a.units += t.Quantity
	}

	first := bucketStart(ds.MinTime, g)
	last := bucketStart(ds.MaxTime, g)
	var series []model.SeriesPoint
	for b := first; !b.After(last); b = nextBucket(b, g) {
		p := model.SeriesPoint{Period: b}
		if a, ok := aggs[b]; ok {
			p.Revenue, _ = a.revenue.Float64()
			p.Orders = len(a.orders)
			p.Customers = len(a.customers)
			p.Units = a.units
		}
		series = append(series, p)
	}

	revenue := make([]float64, len(series))
	for i, p := range series {
		revenue[i] = p.Revenue
	}
	ma, err := calculator.TrailingSMA(revenue, window)
	if err != nil {
		return nil, fmt.Errorf("%w: moving average window: %v", model.ErrInvalidParameter, err)
	}
	for i := range series {
		series[i].MovingAvg = ma[i]
		if i > 0 && revenue[i-1] > 0 {
			series[i].GrowthPct = (revenue[i] - revenue[i-1]) / revenue[i-1] * 100
		}
	}
	return series, nil
}

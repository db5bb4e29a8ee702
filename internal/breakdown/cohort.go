// Package breakdown derives cohort retention and product rankings from a
// loaded dataset.
package breakdown

import (
	"sort"
	"time"

	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

type cohortAgg struct {
	members map[string]struct{}
	active  []map[string]struct{}
	revenue decimal.Decimal
}

// Cohorts builds the monthly retention matrix. Each row spans from its
// cohort month to the last month with data, so older cohorts have longer
// rows. Rows are ordered by cohort month.
func Cohorts(ds *model.Dataset) []model.CohortRow {
	if ds == nil || len(ds.Transactions) == 0 {
		return nil
	}
	first := map[string]time.Time{}
	for _, t := range ds.Transactions {
		m := monthStart(t.Timestamp)
		if f, ok := first[t.CustomerID]; !ok || m.Before(f) {
			first[t.CustomerID] = m
		}
	}
	last := monthStart(ds.Transactions[0].Timestamp)
	for _, t := range ds.Transactions {
		if m := monthStart(t.Timestamp); m.After(last) {
			last = m
		}
	}

	cohorts := map[time.Time]*cohortAgg{}
	for _, t := range ds.Transactions {
		start := first[t.CustomerID]
		c, ok := cohorts[start]
		if !ok {
			c = &cohortAgg{members: map[string]struct{}{}}
			c.active = make([]map[string]struct{}, monthsBetween(start, last)+1)
			for i := range c.active {
				c.active[i] = map[string]struct{}{}
			}
			cohorts[start] = c
		}
		c.members[t.CustomerID] = struct{}{}
		c.active[monthsBetween(start, monthStart(t.Timestamp))][t.CustomerID] = struct{}{}
		c.revenue = c.revenue.Add(t.LineTotal)
	}

	rows := make([]model.CohortRow, 0, len(cohorts))
	for start, c := range cohorts {
		size := len(c.members)
		row := model.CohortRow{
			Cohort:    start,
			Size:      size,
			Active:    make([]int, len(c.active)),
			Retention: make([]float64, len(c.active)),
		}
		row.Revenue, _ = c.revenue.Float64()
		row.LTVAvg = row.Revenue / float64(size)
		for i, a := range c.active {
			row.Active[i] = len(a)
			row.Retention[i] = float64(len(a)) / float64(size) * 100
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Cohort.Before(rows[j].Cohort) })
	return rows
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

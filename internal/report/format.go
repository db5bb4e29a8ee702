package report

import (
	"fmt"
	"strings"

	"ShopLens/internal/model"
	"ShopLens/internal/rfm"
)

// FormatSummary formats the headline numbers of a report into a Telegram message.
func FormatSummary(r *Report) string {
	var b strings.Builder
	ds := r.Dataset()

	b.WriteString(fmt.Sprintf("📊 <b>ShopLens report</b> | %s\n\n", r.ReferenceDate().Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("Transactions: %d (dropped %d of %d rows)\n", ds.Transactions, ds.RowsDropped, ds.RowsRead))
	b.WriteString(fmt.Sprintf("Period: %s → %s\n", ds.MinTime.Format("2006-01-02"), ds.MaxTime.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Revenue: %.2f\n", ds.Revenue))
	b.WriteString(fmt.Sprintf("Customers: %d\n\n", r.CustomerCount()))

	churn := r.ChurnCounts()
	b.WriteString("⚠️ <b>Churn risk:</b>\n")
	for _, band := range []model.ChurnRisk{model.ChurnLow, model.ChurnMedium, model.ChurnHigh, model.ChurnChurned} {
		b.WriteString(fmt.Sprintf("  %s: %d\n", band, churn[band]))
	}

	tiers := r.TierCounts()
	b.WriteString("\n🏅 <b>RFM tiers:</b>\n")
	for _, t := range rfm.Tiers {
		b.WriteString(fmt.Sprintf("  %s: %d\n", t.Label, tiers[t.Label]))
	}
	b.WriteString(fmt.Sprintf("  %s: %d\n", rfm.DefaultTier, tiers[rfm.DefaultTier]))

	if red := r.Reductions(); len(red) > 0 {
		b.WriteString("\nReduced bins:")
		for _, x := range red {
			b.WriteString(fmt.Sprintf(" %s %d→%d", x.Dimension, x.Requested, x.Applied))
		}
		b.WriteString("\n")
	}

	if fc := r.Forecast(); len(fc.Points) > 0 {
		next := fc.Points[0]
		b.WriteString(fmt.Sprintf("\n🔮 Next %s: %.2f [%.2f, %.2f]\n", fc.Granularity, next.Value, next.Lower, next.Upper))
	}
	return b.String()
}

// FormatSegments formats the segment table.
func FormatSegments(r *Report) string {
	var b strings.Builder
	seg := r.SegmentationView()
	b.WriteString(fmt.Sprintf("👥 <b>Segments</b> (k=%d, inertia %.2f)\n\n", seg.K, seg.Inertia))
	for _, s := range seg.Segments {
		b.WriteString(fmt.Sprintf("%d. <b>%s</b>: %d customers (%.1f%%), revenue %.2f (%.1f%%)\n",
			s.Rank, s.Name, s.Size, s.SharePct, s.Revenue, s.RevenuePct))
		b.WriteString(fmt.Sprintf("   R %.0fd | F %.1f | M %.2f\n", s.AvgRecency, s.AvgFrequency, s.AvgMonetary))
	}
	return b.String()
}

// FormatForecast formats the forecast points with their intervals.
func FormatForecast(r *Report) string {
	var b strings.Builder
	fc := r.Forecast()
	b.WriteString(fmt.Sprintf("🔮 <b>Forecast</b> | %s, %s, %.0f%% interval\n\n",
		fc.Granularity, fc.Method, fc.Confidence*100))
	if n := len(fc.History); n > 0 {
		last := fc.History[n-1]
		b.WriteString(fmt.Sprintf("Last %s: %.2f (%+.1f%%)\n", fc.Granularity, last.Revenue, last.GrowthPct))
	}
	for _, p := range fc.Points {
		b.WriteString(fmt.Sprintf("  %s: %.2f [%.2f, %.2f]\n", p.Period.Format("2006-01-02"), p.Value, p.Lower, p.Upper))
	}
	return b.String()
}

// FormatProducts formats the top n products by revenue.
func FormatProducts(r *Report, n int) string {
	var b strings.Builder
	b.WriteString("🛒 <b>Top products</b>\n\n")
	products := r.Products(n)
	if len(products) == 0 {
		b.WriteString("No product data.\n")
		return b.String()
	}
	for i, p := range products {
		b.WriteString(fmt.Sprintf("%d. %s: %.2f (%d units, %d customers)\n", i+1, p.ProductID, p.Revenue, p.Units, p.Customers))
	}
	return b.String()
}

// FormatCohorts formats the retention matrix, one cohort per line.
func FormatCohorts(r *Report) string {
	var b strings.Builder
	b.WriteString("📅 <b>Cohort retention</b> (% active by month)\n\n")
	for _, c := range r.Cohorts() {
		cells := make([]string, len(c.Retention))
		for i, v := range c.Retention {
			cells[i] = fmt.Sprintf("%.0f", v)
		}
		b.WriteString(fmt.Sprintf("%s (%d, LTV %.2f): %s\n", c.Cohort.Format("2006-01"), c.Size, c.LTVAvg, strings.Join(cells, " ")))
	}
	return b.String()
}

// FormatCustomer formats one customer's profile, score and segment.
func FormatCustomer(v CustomerView) string {
	p, s := v.Profile, v.Score
	var b strings.Builder
	b.WriteString(fmt.Sprintf("👤 <b>%s</b> | %s, %s\n\n", p.CustomerID, v.Segment, s.Tier))
	b.WriteString(fmt.Sprintf("RFM %s (R %d, F %d, M %d)\n", s.Code, s.R, s.F, s.M))
	b.WriteString(fmt.Sprintf("Last purchase %dd ago, %d orders, %.2f spent\n", p.RecencyDays, p.Frequency, p.Monetary))
	b.WriteString(fmt.Sprintf("AOV %.2f | every %.1fd | churn %s\n", p.AvgOrderValue, p.AvgDaysBetween, p.ChurnRisk))
	return b.String()
}

package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ShopLens/internal/breakdown"
	"ShopLens/internal/model"

	"github.com/google/uuid"
)

// Report is the immutable result of one analysis run. All accessors return
// copies; nothing a caller does to a returned value reaches the report.
type Report struct {
	id            string
	generatedAt   time.Time
	snapshotID    string
	referenceDate time.Time
	dataset       model.DatasetSummary
	bins          int
	reductions    []model.BinReduction
	profiles      []model.CustomerProfile
	scores        []model.RFMScore
	segmentation  model.SegmentResult
	forecast      model.ForecastResult
	cohorts       []model.CohortRow
	products      []model.ProductSummary
	index         map[string]int // customer id -> position in profiles/scores
}

// CustomerView joins one customer's profile, score and segment.
type CustomerView struct {
	Profile model.CustomerProfile `json:"profile"`
	Score   model.RFMScore        `json:"score"`
	Segment string                `json:"segment"`
}

// SegmentSummary describes one segment in business terms.
type SegmentSummary struct {
	Name          string         `json:"name"`
	Rank          int            `json:"rank"`
	Size          int            `json:"size"`
	SharePct      float64        `json:"share_pct"`
	Revenue       float64        `json:"revenue"`
	RevenuePct    float64        `json:"revenue_pct"`
	AvgRecency    float64        `json:"avg_recency_days"`
	AvgFrequency  float64        `json:"avg_frequency"`
	AvgMonetary   float64        `json:"avg_monetary"`
	Centroid      model.Centroid `json:"centroid"`
	ChurnedOrHigh int            `json:"churned_or_high_risk"`
}

// Assemble merges the outputs of one run into a Report. The four inputs must
// describe the same snapshot and reference date, and every scored customer
// must belong to exactly one segment.
func Assemble(ds *model.Dataset, rfm *model.RFMResult, seg *model.SegmentResult, fc *model.ForecastResult) (*Report, error) {
	if ds == nil || rfm == nil || seg == nil || fc == nil {
		return nil, fmt.Errorf("%w: assemble needs dataset, rfm, segment and forecast results", model.ErrConsistency)
	}
	for name, id := range map[string]string{"rfm": rfm.SnapshotID, "segment": seg.SnapshotID, "forecast": fc.SnapshotID} {
		if id != ds.SnapshotID {
			return nil, fmt.Errorf("%w: %s result is for snapshot %q, dataset is %q",
				model.ErrConsistency, name, id, ds.SnapshotID)
		}
	}
	if !seg.ReferenceDate.Equal(rfm.ReferenceDate) || !fc.ReferenceDate.Equal(rfm.ReferenceDate) {
		return nil, fmt.Errorf("%w: reference dates differ (rfm %s, segment %s, forecast %s)",
			model.ErrConsistency, rfm.ReferenceDate.Format(time.RFC3339),
			seg.ReferenceDate.Format(time.RFC3339), fc.ReferenceDate.Format(time.RFC3339))
	}
	if len(rfm.Profiles) != len(rfm.Scores) {
		return nil, fmt.Errorf("%w: %d profiles but %d scores", model.ErrConsistency, len(rfm.Profiles), len(rfm.Scores))
	}
	if err := checkMembership(rfm, seg); err != nil {
		return nil, err
	}

	r := &Report{
		id:            uuid.New().String(),
		generatedAt:   time.Now().UTC(),
		snapshotID:    ds.SnapshotID,
		referenceDate: rfm.ReferenceDate,
		dataset:       ds.Summary(),
		bins:          rfm.Bins,
		reductions:    append([]model.BinReduction(nil), rfm.Reductions...),
		profiles:      append([]model.CustomerProfile(nil), rfm.Profiles...),
		scores:        append([]model.RFMScore(nil), rfm.Scores...),
		segmentation:  copySegmentation(*seg),
		forecast:      copyForecast(*fc),
		cohorts:       breakdown.Cohorts(ds),
		products:      breakdown.Products(ds),
		index:         make(map[string]int, len(rfm.Profiles)),
	}
	for i, p := range r.profiles {
		if r.scores[i].CustomerID != p.CustomerID {
			return nil, fmt.Errorf("%w: profile %q and score %q are misaligned",
				model.ErrConsistency, p.CustomerID, r.scores[i].CustomerID)
		}
		r.index[p.CustomerID] = i
	}
	return r, nil
}

func checkMembership(rfm *model.RFMResult, seg *model.SegmentResult) error {
	seen := make(map[string]string, len(rfm.Scores))
	for _, s := range seg.Segments {
		for _, id := range s.CustomerIDs {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: customer %q is in segments %q and %q", model.ErrConsistency, id, prev, s.Name)
			}
			seen[id] = s.Name
		}
	}
	for _, sc := range rfm.Scores {
		name, ok := seen[sc.CustomerID]
		if !ok {
			return fmt.Errorf("%w: customer %q has no segment", model.ErrConsistency, sc.CustomerID)
		}
		if a, ok := seg.Assignments[sc.CustomerID]; ok && a != name {
			return fmt.Errorf("%w: customer %q assigned to %q but listed in %q", model.ErrConsistency, sc.CustomerID, a, name)
		}
		delete(seen, sc.CustomerID)
	}
	if len(seen) > 0 {
		extra := make([]string, 0, len(seen))
		for id := range seen {
			extra = append(extra, id)
		}
		sort.Strings(extra)
		return fmt.Errorf("%w: segmented customers never scored: %v", model.ErrConsistency, extra)
	}
	return nil
}

func copySegmentation(s model.SegmentResult) model.SegmentResult {
	segs := make([]model.Segment, len(s.Segments))
	for i, sg := range s.Segments {
		sg.CustomerIDs = append([]string(nil), sg.CustomerIDs...)
		segs[i] = sg
	}
	s.Segments = segs
	assign := make(map[string]string, len(s.Assignments))
	for k, v := range s.Assignments {
		assign[k] = v
	}
	s.Assignments = assign
	return s
}

func copyForecast(f model.ForecastResult) model.ForecastResult {
	f.History = append([]model.SeriesPoint(nil), f.History...)
	f.Points = append([]model.ForecastPoint(nil), f.Points...)
	return f
}

func (r *Report) ID() string                     { return r.id }
func (r *Report) GeneratedAt() time.Time         { return r.generatedAt }
func (r *Report) SnapshotID() string             { return r.snapshotID }
func (r *Report) ReferenceDate() time.Time       { return r.referenceDate }
func (r *Report) Bins() int                      { return r.bins }
func (r *Report) CustomerCount() int             { return len(r.profiles) }
func (r *Report) Forecast() model.ForecastResult { return copyForecast(r.forecast) }

// Dataset returns the summary of the snapshot the report was computed from.
func (r *Report) Dataset() model.DatasetSummary {
	d := r.dataset
	d.DropReasons = make(map[string]int, len(r.dataset.DropReasons))
	for k, v := range r.dataset.DropReasons {
		d.DropReasons[k] = v
	}
	return d
}

func (r *Report) Reductions() []model.BinReduction {
	return append([]model.BinReduction(nil), r.reductions...)
}

func (r *Report) Profiles() []model.CustomerProfile {
	return append([]model.CustomerProfile(nil), r.profiles...)
}

func (r *Report) Scores() []model.RFMScore {
	return append([]model.RFMScore(nil), r.scores...)
}

// Segmentation returns the full segmentation result, including assignments.
func (r *Report) Segmentation() model.SegmentResult { return copySegmentation(r.segmentation) }

// Segments returns the segments in rank order.
func (r *Report) Segments() []model.Segment { return copySegmentation(r.segmentation).Segments }

// Customer looks up one customer by id.
func (r *Report) Customer(id string) (CustomerView, bool) {
	i, ok := r.index[id]
	if !ok {
		return CustomerView{}, false
	}
	return CustomerView{
		Profile: r.profiles[i],
		Score:   r.scores[i],
		Segment: r.segmentation.Assignments[id],
	}, true
}

// Customers lists customers in id order, optionally restricted to one segment
// (empty name means all).
func (r *Report) Customers(segment string) []CustomerView {
	out := make([]CustomerView, 0, len(r.profiles))
	for i, p := range r.profiles {
		name := r.segmentation.Assignments[p.CustomerID]
		if segment != "" && name != segment {
			continue
		}
		out = append(out, CustomerView{Profile: p, Score: r.scores[i], Segment: name})
	}
	return out
}

// SegmentSummaries aggregates profile metrics per segment, in rank order.
func (r *Report) SegmentSummaries() []SegmentSummary {
	total := 0.0
	for _, p := range r.profiles {
		total += p.Monetary
	}
	out := make([]SegmentSummary, 0, len(r.segmentation.Segments))
	for _, s := range r.segmentation.Segments {
		sum := SegmentSummary{Name: s.Name, Rank: s.Rank, Size: s.Size, Centroid: s.Centroid}
		for _, id := range s.CustomerIDs {
			p := r.profiles[r.index[id]]
			sum.Revenue += p.Monetary
			sum.AvgRecency += float64(p.RecencyDays)
			sum.AvgFrequency += float64(p.Frequency)
			if p.ChurnRisk == model.ChurnHigh || p.ChurnRisk == model.ChurnChurned {
				sum.ChurnedOrHigh++
			}
		}
		if n := float64(len(s.CustomerIDs)); n > 0 {
			sum.AvgRecency /= n
			sum.AvgFrequency /= n
			sum.AvgMonetary = sum.Revenue / n
		}
		if len(r.profiles) > 0 {
			sum.SharePct = float64(s.Size) / float64(len(r.profiles)) * 100
		}
		if total > 0 {
			sum.RevenuePct = sum.Revenue / total * 100
		}
		out = append(out, sum)
	}
	return out
}

// SegmentNames returns the segment names in rank order.
func (r *Report) SegmentNames() []string {
	names := make([]string, len(r.segmentation.Segments))
	for i, s := range r.segmentation.Segments {
		names[i] = s.Name
	}
	return names
}

// ChurnCounts counts customers per churn-risk band.
func (r *Report) ChurnCounts() map[model.ChurnRisk]int {
	out := map[model.ChurnRisk]int{}
	for _, p := range r.profiles {
		out[p.ChurnRisk]++
	}
	return out
}

// TierCounts counts customers per RFM value tier.
func (r *Report) TierCounts() map[string]int {
	out := map[string]int{}
	for _, s := range r.scores {
		out[s.Tier]++
	}
	return out
}

// TopCustomers returns up to n customers by monetary value, highest first.
func (r *Report) TopCustomers(n int) []CustomerView {
	all := r.Customers("")
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Profile.Monetary > all[j].Profile.Monetary
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Cohorts returns the monthly retention matrix, oldest cohort first.
func (r *Report) Cohorts() []model.CohortRow {
	out := make([]model.CohortRow, len(r.cohorts))
	for i, c := range r.cohorts {
		c.Active = append([]int(nil), c.Active...)
		c.Retention = append([]float64(nil), c.Retention...)
		out[i] = c
	}
	return out
}

// Products returns up to n products by revenue; n <= 0 returns all.
func (r *Report) Products(n int) []model.ProductSummary {
	return breakdown.Top(r.products, n)
}

// SegmentationView is the encodable segmentation section of a report.
type SegmentationView struct {
	K          int               `json:"k"`
	Seed       int64             `json:"seed"`
	Features   model.FeatureMode `json:"features"`
	Iterations int               `json:"iterations"`
	Inertia    float64           `json:"inertia"`
	Converged  bool              `json:"converged"`
	Segments   []SegmentSummary  `json:"segments"`
}

// ForecastView is the encodable forecast section of a report.
type ForecastView struct {
	Granularity    model.Granularity     `json:"granularity"`
	Method         string                `json:"method"`
	Confidence     float64               `json:"confidence"`
	ResidualStdDev float64               `json:"residual_std_dev"`
	History        []model.SeriesPoint   `json:"history"`
	Points         []model.ForecastPoint `json:"points"`
}

type reportJSON struct {
	ID            string                 `json:"id"`
	GeneratedAt   time.Time              `json:"generated_at"`
	SnapshotID    string                 `json:"snapshot_id"`
	ReferenceDate time.Time              `json:"reference_date"`
	Dataset       model.DatasetSummary   `json:"dataset"`
	Bins          int                    `json:"bins"`
	Reductions    []model.BinReduction   `json:"bin_reductions,omitempty"`
	Customers     []CustomerView         `json:"customers"`
	Segmentation  SegmentationView       `json:"segmentation"`
	Forecast      ForecastView           `json:"forecast"`
	Cohorts       []model.CohortRow      `json:"cohorts"`
	Products      []model.ProductSummary `json:"products"`
}

// MarshalJSON encodes the whole report for export and the HTTP API.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		ID:            r.id,
		GeneratedAt:   r.generatedAt,
		SnapshotID:    r.snapshotID,
		ReferenceDate: r.referenceDate,
		Dataset:       r.dataset,
		Bins:          r.bins,
		Reductions:    r.reductions,
		Customers:     r.Customers(""),
		Segmentation:  r.SegmentationView(),
		Forecast:      r.ForecastView(),
		Cohorts:       r.Cohorts(),
		Products:      r.Products(0),
	})
}

// SegmentationView returns the segmentation section with per-segment summaries.
func (r *Report) SegmentationView() SegmentationView {
	s := r.segmentation
	return SegmentationView{
		K: s.K, Seed: s.Seed, Features: s.Features, Iterations: s.Iterations,
		Inertia: s.Inertia, Converged: s.Converged, Segments: r.SegmentSummaries(),
	}
}

// ForecastView returns the forecast section of the report.
func (r *Report) ForecastView() ForecastView {
	f := r.Forecast()
	return ForecastView{
		Granularity: f.Granularity, Method: f.Method, Confidence: f.Confidence,
		ResidualStdDev: f.ResidualStdDev, History: f.History, Points: f.Points,
	}
}

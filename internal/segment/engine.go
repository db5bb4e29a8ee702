package segment

import (
	"fmt"
	"log"
	"math"
	"sort"

	"ShopLens/internal/calculator"
	"ShopLens/internal/model"
)

const (
	DefaultK             = 4
	DefaultSeed          = 42
	DefaultMaxIterations = 300
	DefaultRestarts      = 10
	maxAutoK             = 8
)

// Options configures a segmentation fit.
type Options struct {
	K             int   // ignored when AutoK is set
	AutoK         bool  // choose K with the elbow heuristic
	Seed          int64 // same seed, features and K give the same assignment
	MaxIterations int
	Restarts      int
	UseScores     bool     // cluster on R/F/M scores instead of raw values
	Names         []string // best to worst, defaults to DefaultNames
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		K:             DefaultK,
		Seed:          DefaultSeed,
		MaxIterations: DefaultMaxIterations,
		Restarts:      DefaultRestarts,
	}
}

// Segment clusters the scored customers into named segments.
func Segment(res *model.RFMResult, opts Options) (*model.SegmentResult, error) {
	n := len(res.Scores)
	if n != len(res.Profiles) {
		return nil, fmt.Errorf("%w: %d scores for %d profiles", model.ErrConsistency, n, len(res.Profiles))
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Restarts <= 0 {
		opts.Restarts = DefaultRestarts
	}
	names := opts.Names
	if len(names) == 0 {
		names = DefaultNames
	}
	mode := model.FeaturesRaw
	if opts.UseScores {
		mode = model.FeaturesScores
	}

	points, err := features(res, mode)
	if err != nil {
		return nil, err
	}
	distinct := distinctPoints(points)

	k := opts.K
	if opts.AutoK {
		maxK := min(maxAutoK, n-1, distinct)
		if maxK < 1 {
			return nil, fmt.Errorf("%w: cannot choose K for %d customers", model.ErrClustering, n)
		}
		k = elbowK(points, maxK, opts.Seed, opts.Restarts, opts.MaxIterations)
		log.Printf("[INFO] segment: elbow heuristic selected K=%d (max %d)", k, maxK)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: K must be at least 1, got %d", model.ErrClustering, k)
	}
	if k >= n {
		return nil, fmt.Errorf("%w: K=%d requires more than %d customers", model.ErrClustering, k, n)
	}
	if distinct < k {
		return nil, fmt.Errorf("%w: only %d distinct feature vectors for K=%d", model.ErrClustering, distinct, k)
	}

	f := bestFit(points, k, opts.Seed, opts.Restarts, opts.MaxIterations)
	if !f.converged {
		log.Printf("[WARN] segment: k-means stopped at iteration cap %d without converging", opts.MaxIterations)
	}

	order := rankClusters(f.centroids, mode)
	rankOf := make([]int, k)
	for rank, c := range order {
		rankOf[c] = rank
	}

	segments := make([]model.Segment, k)
	for rank := range order {
		segments[rank] = model.Segment{Name: labelFor(rank, k, names), Rank: rank + 1}
	}
	assignments := make(map[string]string, n)
	for i, p := range res.Profiles {
		s := &segments[rankOf[f.labels[i]]]
		s.CustomerIDs = append(s.CustomerIDs, p.CustomerID)
		s.Size++
		s.Centroid.Recency += float64(p.RecencyDays)
		s.Centroid.Frequency += float64(p.Frequency)
		s.Centroid.Monetary += p.Monetary
		assignments[p.CustomerID] = s.Name
	}
	for i := range segments {
		s := &segments[i]
		if s.Size > 0 {
			s.Centroid.Recency /= float64(s.Size)
			s.Centroid.Frequency /= float64(s.Size)
			s.Centroid.Monetary /= float64(s.Size)
		}
		sort.Strings(s.CustomerIDs)
	}

	return &model.SegmentResult{
		SnapshotID:    res.SnapshotID,
		ReferenceDate: res.ReferenceDate,
		K:             k,
		Seed:          opts.Seed,
		Features:      mode,
		Iterations:    f.iterations,
		Inertia:       f.inertia,
		Converged:     f.converged,
		Segments:      segments,
		Assignments:   assignments,
	}, nil
}

// features builds standardized vectors in profile order.
func features(res *model.RFMResult, mode model.FeatureMode) ([]vec, error) {
	n := len(res.Profiles)
	cols := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i, p := range res.Profiles {
		if mode == model.FeaturesScores {
			s := res.Scores[i]
			cols[0][i], cols[1][i], cols[2][i] = float64(s.R), float64(s.F), float64(s.M)
			continue
		}
		cols[0][i], cols[1][i], cols[2][i] = float64(p.RecencyDays), float64(p.Frequency), p.Monetary
	}
	points := make([]vec, n)
	for d := 0; d < 3; d++ {
		z, _, _, err := calculator.Standardize(cols[d])
		if err != nil {
			return nil, fmt.Errorf("%w: standardize features: %v", model.ErrInsufficientData, err)
		}
		for i := range points {
			points[i][d] = z[i]
		}
	}
	return points, nil
}

func distinctPoints(points []vec) int {
	seen := make(map[vec]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// rankClusters orders cluster indexes by frequency+monetary composite,
// descending; fresher recency breaks ties, then the cluster index.
func rankClusters(centroids []vec, mode model.FeatureMode) []int {
	const eps = 1e-9
	freshness := func(c vec) float64 {
		if mode == model.FeaturesScores {
			return c[0] // higher R score is more recent
		}
		return -c[0] // fewer days since purchase is more recent
	}
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := centroids[order[a]], centroids[order[b]]
		va, vb := ca[1]+ca[2], cb[1]+cb[2]
		if math.Abs(va-vb) > eps {
			return va > vb
		}
		fa, fb := freshness(ca), freshness(cb)
		if math.Abs(fa-fb) > eps {
			return fa > fb
		}
		return order[a] < order[b]
	})
	return order
}

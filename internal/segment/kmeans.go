package segment

import (
	"math"
	"math/rand"
)

type vec [3]float64

func sqDist(a, b vec) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

type fit struct {
	labels     []int
	centroids  []vec
	inertia    float64
	iterations int
	converged  bool
}

// bestFit runs restarts k-means fits from one seeded source and keeps the
// lowest inertia. The first fit wins ties.
func bestFit(points []vec, k int, seed int64, restarts, maxIter int) fit {
	rng := rand.New(rand.NewSource(seed))
	var best fit
	for i := 0; i < restarts; i++ {
		f := lloyd(points, seedCentroids(points, k, rng), maxIter)
		if i == 0 || f.inertia < best.inertia {
			best = f
		}
	}
	return best
}

// seedCentroids picks k starting centroids with k-means++ weighting.
func seedCentroids(points []vec, k int, rng *rand.Rand) []vec {
	centroids := make([]vec, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])
	d2 := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if v := sqDist(p, c); v < d {
					d = v
				}
			}
			d2[i] = d
			total += d
		}
		pick := -1
		if total > 0 {
			r := rng.Float64() * total
			cum := 0.0
			for i, d := range d2 {
				if d == 0 {
					continue
				}
				cum += d
				pick = i
				if cum > r {
					break
				}
			}
		}
		if pick < 0 {
			// Every point coincides with a centroid; reuse the first point.
			pick = 0
		}
		centroids = append(centroids, points[pick])
	}
	return centroids
}

// lloyd iterates assignment and mean updates until assignments stop changing
// or maxIter is reached. Ties go to the lowest centroid index.
func lloyd(points []vec, centroids []vec, maxIter int) fit {
	k := len(centroids)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	f := fit{centroids: centroids}
	for f.iterations < maxIter {
		f.iterations++
		changed := false
		for i, p := range points {
			best, bestD := 0, math.Inf(1)
			for c := range centroids {
				if d := sqDist(p, centroids[c]); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			f.converged = true
			break
		}

		sums := make([]vec, k)
		counts := make([]int, k)
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d := 0; d < 3; d++ {
				sums[c][d] += p[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				centroids[c] = points[farthestPoint(points, labels, centroids)]
				continue
			}
			for d := 0; d < 3; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	f.labels = labels
	for i, p := range points {
		f.inertia += sqDist(p, centroids[labels[i]])
	}
	return f
}

// farthestPoint returns the point furthest from its assigned centroid; it
// re-seeds clusters that lost all members.
func farthestPoint(points []vec, labels []int, centroids []vec) int {
	idx, far := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centroids[labels[i]]); d > far {
			idx, far = i, d
		}
	}
	return idx
}

// elbowK picks the k in [1, maxK] after which inertia stops dropping sharply,
// measured by the largest second difference of the inertia curve.
func elbowK(points []vec, maxK int, seed int64, restarts, maxIter int) int {
	if maxK <= 2 {
		return maxK
	}
	inertia := make([]float64, maxK+1)
	for k := 1; k <= maxK; k++ {
		inertia[k] = bestFit(points, k, seed, restarts, maxIter).inertia
	}
	bestK, bestD := 2, math.Inf(-1)
	for k := 2; k < maxK; k++ {
		if d := inertia[k-1] - 2*inertia[k] + inertia[k+1]; d > bestD {
			bestK, bestD = k, d
		}
	}
	return bestK
}

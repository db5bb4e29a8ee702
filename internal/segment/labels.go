package segment

import (
	"fmt"
	"math"
)

// DefaultNames lists segment names from the most to the least valuable cluster.
var DefaultNames = []string{"Champions", "Loyal", "Potential", "New", "At Risk"}

// labelFor maps a value rank (0 = best) among k clusters onto names. The best
// cluster always gets the first name and the worst the last. With fewer
// clusters than names the ranks are spread over the list; with more, the
// extra middle ranks reuse the second-to-last name with a counter.
func labelFor(rank, k int, names []string) string {
	n := len(names)
	switch {
	case k == 1 || n == 1:
		if k > 1 {
			return fmt.Sprintf("%s %d", names[0], rank+1)
		}
		return names[0]
	case k <= n:
		idx := int(math.Round(float64(rank) * float64(n-1) / float64(k-1)))
		return names[idx]
	case rank == k-1:
		return names[n-1]
	case rank < n-1:
		return names[rank]
	default:
		return fmt.Sprintf("%s %d", names[n-2], rank-n+3)
	}
}

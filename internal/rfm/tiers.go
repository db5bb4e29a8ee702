package rfm

// Tiers maps the combined R+F+M score onto a value tier by its share of the
// highest possible combined score. With five bins the cut points are 12, 9
// and 6 out of 15.
var Tiers = []struct {
	MinPct int
	Label  string
}{
	{80, "Champions"},
	{60, "Loyal"},
	{40, "Potential"},
}

// DefaultTier is the tier for combined scores below every threshold.
const DefaultTier = "At Risk"

// mapTier maps a combined score to its tier label.
func mapTier(combined, maxCombined int) string {
	for _, t := range Tiers {
		if combined*100 >= t.MinPct*maxCombined {
			return t.Label
		}
	}
	return DefaultTier
}

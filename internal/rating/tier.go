package rating

// Tier is the rank label derived from a rating. It is a pure function of the
// rating and is recomputed on every rating write, never stored independently.
type Tier string

// Tiers in ascending order, 100 rating points apart starting at 0.
var tiers = []Tier{
	"F-", "F", "F+",
	"E-", "E", "E+",
	"D-", "D", "D+",
	"C-", "C", "C+",
	"B-", "B", "B+",
	"A-", "A", "A+",
	"S-", "S", "S+",
}

const tierStep = 100

// TierFor returns the rank tier for a rating.
func TierFor(rating int) Tier {
	if rating < 0 {
		rating = 0
	}
	idx := rating / tierStep
	if idx >= len(tiers) {
		idx = len(tiers) - 1
	}
	return tiers[idx]
}

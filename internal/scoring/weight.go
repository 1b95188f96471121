package scoring

import "time"

const (
	fullWeightCutoff    = 5
	reducedWeightCutoff = 15

	fullWeight    = 1.0
	reducedWeight = 0.5
	floorWeight   = 0.1
)

// UserBoost is the per-user boost aggregate for a single submission. A
// submission carries at most one aggregate per user; BoostCount only grows
// and LastBoostAt only moves forward.
type UserBoost struct {
	UserID      string
	BoostCount  int
	LastBoostAt time.Time
}

// BoostOutcome describes the effect of a single boost action: the
// user-facing count delta (always 1), the ranking-relevant weighted delta,
// and the updated aggregate set.
type BoostOutcome struct {
	DisplayDelta  int
	WeightedDelta float64
	Aggregates    []UserBoost
}

// BoostWeight returns the weighted contribution of a user's next boost given
// how many boosts that user has already placed on the same submission. The
// first five boosts carry full weight, the next ten half weight, everything
// beyond a token weight. The curve depends on repetition count only, never
// on elapsed time.
func BoostWeight(priorBoosts int) float64 {
	switch {
	case priorBoosts < fullWeightCutoff:
		return fullWeight
	case priorBoosts < reducedWeightCutoff:
		return reducedWeight
	default:
		return floorWeight
	}
}

// ApplyBoost records one boost by userID at the given instant. The input
// aggregate slice is not mutated; first-time boosters get a fresh aggregate
// entry. Boosting is unbounded, the diminishing curve alone discourages
// repeat-vote stuffing.
func ApplyBoost(aggregates []UserBoost, userID string, now time.Time) BoostOutcome {
	updated := make([]UserBoost, 0, len(aggregates)+1)
	priorBoosts := 0
	found := false
	for _, aggregate := range aggregates {
		if aggregate.UserID == userID {
			priorBoosts = aggregate.BoostCount
			aggregate.BoostCount++
			aggregate.LastBoostAt = now
			found = true
		}
		updated = append(updated, aggregate)
	}
	if !found {
		updated = append(updated, UserBoost{UserID: userID, BoostCount: 1, LastBoostAt: now})
	}

	return BoostOutcome{
		DisplayDelta:  1,
		WeightedDelta: BoostWeight(priorBoosts),
		Aggregates:    updated,
	}
}

// DiversityMultiplier rewards breadth of engagement: it scales with the
// number of distinct boosters, not with boost volume.
func DiversityMultiplier(uniqueBoosters int) float64 {
	switch {
	case uniqueBoosters >= 10:
		return 1.5
	case uniqueBoosters >= 5:
		return 1.3
	case uniqueBoosters >= 3:
		return 1.1
	default:
		return 1.0
	}
}

package scoring

import (
	"sort"
	"time"
)

const (
	recentBoosterWindow = 2 * time.Hour
	recentBoosterBar    = 3
	diversityBonus      = 5.0
)

// Candidate is the ranking view of a submission: the denormalized scoring
// fields plus one last-boost timestamp per distinct booster.
type Candidate struct {
	ID              string
	ActualBoosts    float64
	Velocity        float64
	IsRising        bool
	Visible         bool
	SubmittedAt     time.Time
	BoosterLastSeen []time.Time
}

// UniqueBoosters returns the number of distinct users who ever boosted the
// candidate.
func (c Candidate) UniqueBoosters() int {
	return len(c.BoosterLastSeen)
}

// RecentBoosters counts distinct users whose latest boost falls within the
// trailing two hours.
func (c Candidate) RecentBoosters(now time.Time) int {
	cutoff := now.Add(-recentBoosterWindow)
	count := 0
	for _, seenAt := range c.BoosterLastSeen {
		if !seenAt.IsZero() && !seenAt.Before(cutoff) {
			count++
		}
	}
	return count
}

// CompositeScore is the primary ranking score: weighted boosts plus a flat
// per-unique-booster diversity bonus.
func (c Candidate) CompositeScore() float64 {
	return c.ActualBoosts + diversityBonus*float64(c.UniqueBoosters())
}

// SeasonRanking is the result of a full trending and ranking pass.
type SeasonRanking struct {
	Trending       *Candidate
	Ranked         []Candidate
	CompetingCount int
}

// RankSeason selects at most one trending submission for the season and
// orders the remainder for display. Hidden candidates are excluded from the
// selection, the ranked list and the competing count. The pass is pure:
// identical input snapshots always produce identical output.
func RankSeason(candidates []Candidate, now time.Time) SeasonRanking {
	visible := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Visible {
			visible = append(visible, candidate)
		}
	}

	ranking := SeasonRanking{CompetingCount: competingCount(visible, now)}

	if chosen := selectTrending(visible, now); chosen >= 0 {
		trending := visible[chosen]
		ranking.Trending = &trending
		visible = append(visible[:chosen], visible[chosen+1:]...)
	}

	sortCandidates(visible)
	ranking.Ranked = visible
	return ranking
}

// selectTrending runs the spotlight cascade over the visible candidates and
// returns the index of the winner, or -1 when the season is empty:
// rising submissions ranked by weighted boosts, then recent multi-user
// engagement, then the earliest submitted entry as a guaranteed fallback.
func selectTrending(visible []Candidate, now time.Time) int {
	if len(visible) == 0 {
		return -1
	}

	chosen := -1
	for index, candidate := range visible {
		if !candidate.IsRising {
			continue
		}
		if chosen < 0 || candidate.ActualBoosts > visible[chosen].ActualBoosts {
			chosen = index
		}
	}
	if chosen >= 0 {
		return chosen
	}

	bestCount := 0
	for index, candidate := range visible {
		count := candidate.RecentBoosters(now)
		if count >= recentBoosterBar && count > bestCount {
			chosen = index
			bestCount = count
		}
	}
	if chosen >= 0 {
		return chosen
	}

	chosen = 0
	for index, candidate := range visible {
		if candidate.SubmittedAt.Before(visible[chosen].SubmittedAt) {
			chosen = index
		}
	}
	return chosen
}

// competingCount is the population rule 2 of the cascade would pick from,
// regardless of whether rule 2 fired.
func competingCount(visible []Candidate, now time.Time) int {
	count := 0
	for _, candidate := range visible {
		if candidate.RecentBoosters(now) >= recentBoosterBar {
			count++
		}
	}
	return count
}

// sortCandidates applies the display order: rising entries first, then the
// composite score, with velocity and booster diversity as tie-breaks.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		left, right := candidates[i], candidates[j]
		if left.IsRising != right.IsRising {
			return left.IsRising
		}
		if left.CompositeScore() != right.CompositeScore() {
			return left.CompositeScore() > right.CompositeScore()
		}
		if left.Velocity != right.Velocity {
			return left.Velocity > right.Velocity
		}
		return left.UniqueBoosters() > right.UniqueBoosters()
	})
}

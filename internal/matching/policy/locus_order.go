// Package policy holds the tunable decisions the matching pipeline consults:
// which locus to query first and when to push donor-type filtering down to
// storage.
package policy

import (
	"slices"

	"donormatch/internal/matching/models"
)

// DefaultLocusPriority ranks loci for tie-breaking; lower is queried earlier.
// Drb1 has the most polymorphism, so an exact Drb1 query is the narrowest.
var DefaultLocusPriority = map[models.Locus]int{
	models.LocusDrb1: 0,
	models.LocusB:    1,
	models.LocusA:    2,
	models.LocusDqb1: 3,
	models.LocusC:    3,
	models.LocusDpb1: 4,
}

// MatchCriteriaAnalyser decides the order in which loci are matched.
type MatchCriteriaAnalyser struct {
	priority map[models.Locus]int
}

// NewMatchCriteriaAnalyser uses priority for tie-breaking; nil selects
// DefaultLocusPriority.
func NewMatchCriteriaAnalyser(priority map[models.Locus]int) *MatchCriteriaAnalyser {
	if priority == nil {
		priority = DefaultLocusPriority
	}
	return &MatchCriteriaAnalyser{priority: priority}
}

// LociInMatchingOrder returns exactly the searched loci. Required loci come
// first, by ascending mismatch allowance then priority; optional loci follow
// in priority order regardless of allowance, since an optional locus would
// otherwise seed the candidate set with every donor untyped there.
func (a *MatchCriteriaAnalyser) LociInMatchingOrder(criteria models.AlleleLevelMatchCriteria) []models.Locus {
	loci := criteria.SearchedLoci()
	slices.SortStableFunc(loci, func(x, y models.Locus) int {
		if x.IsRequired() != y.IsRequired() {
			if x.IsRequired() {
				return -1
			}
			return 1
		}
		if x.IsRequired() {
			mx, _ := criteria.LocusMismatchCount(x)
			my, _ := criteria.LocusMismatchCount(y)
			if mx != my {
				return mx - my
			}
		}
		return a.rank(x) - a.rank(y)
	})
	return loci
}

func (a *MatchCriteriaAnalyser) rank(l models.Locus) int {
	if p, ok := a.priority[l]; ok {
		return p
	}
	return len(a.priority) + int(l)
}

// Package simplifier splits lenient searches into a union of cheaper ones.
//
// A search is cheap when at least one required locus allows no mismatches:
// that locus can then seed the pipeline with an exact, narrow query. Every
// split returned here is exact: the union by donor id of the donors satisfying
// each variant equals the donors satisfying the original criteria.
package simplifier

import (
	"donormatch/internal/matching/models"
)

// Rule splits criteria with a given total allowance whose required loci all
// allow at least one mismatch.
type Rule func(s *Simplifier, criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria

// DefaultRules is keyed by total mismatch allowance. Totals without a rule are
// returned unchanged.
var DefaultRules = map[int]Rule{
	0: unchanged,
	1: splitSingleMismatch,
	2: splitDoubleMismatch,
	3: splitTripleMismatch,
}

// Simplifier applies a rule table to criteria.
type Simplifier struct {
	rules map[int]Rule
}

// New builds a Simplifier over rules; nil selects DefaultRules.
func New(rules map[int]Rule) *Simplifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Simplifier{rules: rules}
}

// SplitSearch returns criteria variants whose union equals criteria.
func (s *Simplifier) SplitSearch(criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	if isCheap(criteria) || !requiredLociSearched(criteria) {
		return []models.AlleleLevelMatchCriteria{criteria}
	}
	rule, ok := s.rules[criteria.DonorMismatchCount]
	if !ok {
		return []models.AlleleLevelMatchCriteria{criteria}
	}
	return rule(s, criteria)
}

func isCheap(criteria models.AlleleLevelMatchCriteria) bool {
	for _, l := range models.RequiredLoci {
		if mm, ok := criteria.LocusMismatchCount(l); ok && mm == 0 {
			return true
		}
	}
	return false
}

func requiredLociSearched(criteria models.AlleleLevelMatchCriteria) bool {
	for _, l := range models.RequiredLoci {
		if !criteria.IsLocusSearched(l) {
			return false
		}
	}
	return true
}

func unchanged(_ *Simplifier, criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	return []models.AlleleLevelMatchCriteria{criteria}
}

// splitSingleMismatch: the one mismatch is either at Drb1 or elsewhere.
func splitSingleMismatch(_ *Simplifier, criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	return drb1Split(criteria)
}

// splitDoubleMismatch covers two mismatches concentrated at one locus and
// two mismatches spread over different loci.
func splitDoubleMismatch(s *Simplifier, criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	if requiredAllowancesAll(criteria, 1) {
		return zeroEachRequiredLocus(criteria)
	}

	var variants []models.AlleleLevelMatchCriteria
	if anyAllowance(criteria, models.MaxLocusMismatchCount) {
		variants = append(variants, drb1Split(criteria)...)
	}
	return append(variants, s.SplitSearch(capAllowances(criteria, criteria.SearchedLoci()))...)
}

// splitTripleMismatch: either a required locus matches fully, or each
// required locus carries exactly one of the three mismatches.
func splitTripleMismatch(_ *Simplifier, criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	return append(zeroEachRequiredLocus(criteria), capAllowances(criteria, models.RequiredLoci))
}

// drb1Split returns Drb1 exact with everything else unchanged, and everything
// except Drb1 exact.
func drb1Split(criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	drb1Exact := criteria.WithLocusMismatchCount(models.LocusDrb1, 0)

	othersExact := criteria
	for _, l := range criteria.SearchedLoci() {
		if l != models.LocusDrb1 {
			othersExact = othersExact.WithLocusMismatchCount(l, 0)
		}
	}
	return []models.AlleleLevelMatchCriteria{drb1Exact, othersExact}
}

func zeroEachRequiredLocus(criteria models.AlleleLevelMatchCriteria) []models.AlleleLevelMatchCriteria {
	variants := make([]models.AlleleLevelMatchCriteria, 0, len(models.RequiredLoci))
	for _, l := range models.RequiredLoci {
		variants = append(variants, criteria.WithLocusMismatchCount(l, 0))
	}
	return variants
}

func capAllowances(criteria models.AlleleLevelMatchCriteria, loci []models.Locus) models.AlleleLevelMatchCriteria {
	capped := criteria
	for _, l := range loci {
		if mm, ok := criteria.LocusMismatchCount(l); ok {
			capped = capped.WithLocusMismatchCount(l, min(mm, 1))
		}
	}
	return capped
}

func requiredAllowancesAll(criteria models.AlleleLevelMatchCriteria, allowance int) bool {
	for _, l := range models.RequiredLoci {
		if mm, ok := criteria.LocusMismatchCount(l); !ok || mm != allowance {
			return false
		}
	}
	return true
}

func anyAllowance(criteria models.AlleleLevelMatchCriteria, allowance int) bool {
	for _, l := range criteria.SearchedLoci() {
		if mm, _ := criteria.LocusMismatchCount(l); mm == allowance {
			return true
		}
	}
	return false
}

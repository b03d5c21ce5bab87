// Package filtering holds the predicates that decide whether a match result
// satisfies search criteria.
package filtering

import (
	"errors"
	"fmt"

	"donormatch/internal/matching/models"
)

// ErrUnknownDonorType means type-specific rules have no case for a donor
// type. Every donor type must be handled explicitly.
var ErrUnknownDonorType = errors.New("no type-specific matching rule for donor type")

// Service evaluates match results against criteria.
type Service struct{}

// New returns a filtering Service.
func New() *Service {
	return &Service{}
}

// FulfilsPerLocusMatchCriteria reports whether the result's match count at
// locus is within the locus allowance. Unsearched loci always pass; searched
// loci that have not been evaluated fail.
func (s *Service) FulfilsPerLocusMatchCriteria(result *models.MatchResult, criteria models.AlleleLevelMatchCriteria, locus models.Locus) bool {
	allowed, searched := criteria.LocusMismatchCount(locus)
	if !searched {
		return true
	}
	details := result.MatchDetailsForLocus(locus)
	if details == nil {
		return false
	}
	return details.MatchCount() >= models.MaxLocusMismatchCount-allowed
}

// FulfilsTotalMatchCriteria reports whether the summed match count over
// searched loci reaches the criteria's target.
func (s *Service) FulfilsTotalMatchCriteria(result *models.MatchResult, criteria models.AlleleLevelMatchCriteria) bool {
	return totalOverSearchedLoci(result, criteria) >= criteria.TargetTotalMatchCount()
}

// FulfilsSearchTypeCriteria reports whether the hydrated donor has the
// requested type.
func (s *Service) FulfilsSearchTypeCriteria(result *models.MatchResult, criteria models.AlleleLevelMatchCriteria) bool {
	return result.Donor != nil && result.Donor.DonorType == criteria.SearchType
}

// FulfilsSearchTypeSpecificCriteria applies donor-type rules. Adult searches
// return exactly the requested match grade; cord searches also return better
// matches. IncludeBetterMatches makes every type inclusive.
func (s *Service) FulfilsSearchTypeSpecificCriteria(result *models.MatchResult, criteria models.AlleleLevelMatchCriteria) (bool, error) {
	if result.Donor == nil {
		return false, nil
	}
	total := totalOverSearchedLoci(result, criteria)
	target := criteria.TargetTotalMatchCount()
	if criteria.IncludeBetterMatches {
		return total >= target, nil
	}

	switch result.Donor.DonorType {
	case models.DonorTypeAdult:
		return total == target, nil
	case models.DonorTypeCord:
		return total >= target, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownDonorType, result.Donor.DonorType)
	}
}

func totalOverSearchedLoci(result *models.MatchResult, criteria models.AlleleLevelMatchCriteria) int {
	total := 0
	for _, l := range criteria.SearchedLoci() {
		if d := result.MatchDetailsForLocus(l); d != nil {
			total += d.MatchCount()
		}
	}
	return total
}

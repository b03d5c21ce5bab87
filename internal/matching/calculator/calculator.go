// Package calculator scores a donor's typing at a locus against patient
// criteria in memory, without going through storage.
package calculator

import (
	"errors"
	"fmt"

	"donormatch/internal/matching/models"
	pstrings "donormatch/pkg/platform/strings"
)

// ErrPartialLocusTyping means a donor has one position typed and the other
// untyped at a locus. Loci are fully typed or fully untyped; anything else is
// corrupt input.
var ErrPartialLocusTyping = errors.New("locus must be fully typed or fully untyped")

// Calculator computes per-locus match details.
type Calculator struct{}

// New returns a Calculator.
func New() *Calculator {
	return &Calculator{}
}

// CalculateMatchDetails scores one locus. A nil group means that position is
// untyped. Missing criteria or an untyped donor score two.
//
// One match is counted when any patient PGroup appears at either donor
// position. A second is counted when a direct or cross pairing exists, each
// patient position sharing a PGroup with its paired donor position. Patient
// PGroup names are trimmed and deduplicated as they are for storage lookups.
func (c *Calculator) CalculateMatchDetails(
	criteria *models.AlleleLevelLocusMatchCriteria,
	donorGroup1, donorGroup2 []string,
) (*models.LocusMatchDetails, error) {
	if (donorGroup1 == nil) != (donorGroup2 == nil) {
		return nil, ErrPartialLocusTyping
	}
	if criteria == nil || donorGroup1 == nil {
		return models.FullMatch(), nil
	}

	donorGroups := [2][]string{donorGroup1, donorGroup2}
	details := models.NoMatch()
	for _, search := range models.Positions {
		wanted := pstrings.DedupeAndTrim(criteria.PGroupsAtPosition(search))
		for i, match := range models.Positions {
			if sharesPGroup(wanted, donorGroups[i]) {
				details.AddPair(models.PositionPair{Search: search, Match: match})
			}
		}
	}
	return details, nil
}

// MatchDonor scores every searched locus of donor against criteria and
// returns a result with those slots populated.
func (c *Calculator) MatchDonor(criteria models.AlleleLevelMatchCriteria, donor *models.Donor) (*models.MatchResult, error) {
	result := models.NewMatchResult(donor.DonorID)
	for _, l := range criteria.SearchedLoci() {
		var group1, group2 []string
		if typing := donor.Hla[l]; typing != nil {
			group1, group2 = typing.PositionOne, typing.PositionTwo
		}
		details, err := c.CalculateMatchDetails(criteria.LocusCriteria(l), group1, group2)
		if err != nil {
			return nil, fmt.Errorf("donor %d locus %s: %w", donor.DonorID, l, err)
		}
		result.SetMatchDetailsForLocus(l, details)
	}
	return result, nil
}

func sharesPGroup(wanted, have []string) bool {
	if len(wanted) == 0 || len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, pg := range have {
		set[pg] = struct{}{}
	}
	for _, pg := range wanted {
		if _, ok := set[pg]; ok {
			return true
		}
	}
	return false
}

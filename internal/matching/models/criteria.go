package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	dErrors "donormatch/pkg/domain-errors"
)

// MaxLocusMismatchCount is the largest per-locus allowance: both positions.
const MaxLocusMismatchCount = 2

// ErrUnsupportedLocus means criteria or a query named a locus outside AllLoci.
var ErrUnsupportedLocus = errors.New("unsupported locus")

// AlleleLevelLocusMatchCriteria is the search input for one locus: the
// patient's PGroups per position and how many of the two positions may
// mismatch. Values are never mutated after construction; use With* helpers
// to derive variants.
type AlleleLevelLocusMatchCriteria struct {
	PGroupsToMatchInPositionOne []string
	PGroupsToMatchInPositionTwo []string
	MismatchCount               int
}

// PGroupsAtPosition returns the patient PGroups typed at p.
func (c *AlleleLevelLocusMatchCriteria) PGroupsAtPosition(p LocusPosition) []string {
	if p == PositionOne {
		return c.PGroupsToMatchInPositionOne
	}
	return c.PGroupsToMatchInPositionTwo
}

func (c *AlleleLevelLocusMatchCriteria) withMismatchCount(count int) *AlleleLevelLocusMatchCriteria {
	return &AlleleLevelLocusMatchCriteria{
		PGroupsToMatchInPositionOne: c.PGroupsToMatchInPositionOne,
		PGroupsToMatchInPositionTwo: c.PGroupsToMatchInPositionTwo,
		MismatchCount:               count,
	}
}

// AlleleLevelMatchCriteria aggregates per-locus criteria with the total
// allowance and search-wide flags. A locus without criteria is not searched
// and does not count towards totals.
type AlleleLevelMatchCriteria struct {
	SearchType           DonorType
	DonorMismatchCount   int
	IncludeBetterMatches bool

	loci        [LocusCount]*AlleleLevelLocusMatchCriteria
	unsupported []Locus
}

// NewMatchCriteria builds criteria for the given search type and total
// allowance. Loci are attached with WithLocus.
func NewMatchCriteria(searchType DonorType, donorMismatchCount int) AlleleLevelMatchCriteria {
	return AlleleLevelMatchCriteria{
		SearchType:         searchType,
		DonorMismatchCount: donorMismatchCount,
	}
}

// WithLocus returns a copy of c searching locus l with lc. A nil lc removes
// the locus from the search. An unsupported l is recorded and reported by
// Validate.
func (c AlleleLevelMatchCriteria) WithLocus(l Locus, lc *AlleleLevelLocusMatchCriteria) AlleleLevelMatchCriteria {
	if !l.IsValid() {
		return c.withUnsupported(l)
	}
	c.loci[l] = lc
	return c
}

// WithLocusMismatchCount returns a copy of c with l's allowance replaced.
// Unsearched loci are left unsearched.
func (c AlleleLevelMatchCriteria) WithLocusMismatchCount(l Locus, count int) AlleleLevelMatchCriteria {
	if !l.IsValid() {
		return c.withUnsupported(l)
	}
	if lc := c.loci[l]; lc != nil {
		c.loci[l] = lc.withMismatchCount(count)
	}
	return c
}

func (c AlleleLevelMatchCriteria) withUnsupported(l Locus) AlleleLevelMatchCriteria {
	c.unsupported = append(slices.Clip(c.unsupported), l)
	return c
}

// WithBetterMatches returns a copy of c with IncludeBetterMatches set.
func (c AlleleLevelMatchCriteria) WithBetterMatches(include bool) AlleleLevelMatchCriteria {
	c.IncludeBetterMatches = include
	return c
}

// LocusCriteria returns the criteria for l, or nil if l is not searched.
func (c AlleleLevelMatchCriteria) LocusCriteria(l Locus) *AlleleLevelLocusMatchCriteria {
	if !l.IsValid() {
		return nil
	}
	return c.loci[l]
}

// IsLocusSearched reports whether l has criteria.
func (c AlleleLevelMatchCriteria) IsLocusSearched(l Locus) bool {
	return c.LocusCriteria(l) != nil
}

// LocusMismatchCount returns l's allowance and whether l is searched.
func (c AlleleLevelMatchCriteria) LocusMismatchCount(l Locus) (int, bool) {
	lc := c.LocusCriteria(l)
	if lc == nil {
		return 0, false
	}
	return lc.MismatchCount, true
}

// SearchedLoci lists loci with criteria in declaration order.
func (c AlleleLevelMatchCriteria) SearchedLoci() []Locus {
	loci := make([]Locus, 0, LocusCount)
	for _, l := range AllLoci {
		if c.loci[l] != nil {
			loci = append(loci, l)
		}
	}
	return loci
}

// TargetTotalMatchCount is the total match count implied by the criteria:
// two per searched locus minus the total allowance.
func (c AlleleLevelMatchCriteria) TargetTotalMatchCount() int {
	return 2*len(c.SearchedLoci()) - c.DonorMismatchCount
}

// Validate checks the structural invariants callers must uphold.
func (c AlleleLevelMatchCriteria) Validate() error {
	if !c.SearchType.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid search type %q", c.SearchType))
	}
	if len(c.unsupported) > 0 {
		return dErrors.Wrap(ErrUnsupportedLocus, dErrors.CodeInvalidInput, fmt.Sprintf("unsupported locus %s", c.unsupported[0]))
	}
	if c.DonorMismatchCount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "donor mismatch count cannot be negative")
	}
	for _, l := range RequiredLoci {
		if c.loci[l] == nil {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("locus %s is required", l))
		}
	}
	for _, l := range c.SearchedLoci() {
		lc := c.loci[l]
		if lc.MismatchCount < 0 || lc.MismatchCount > MaxLocusMismatchCount {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("locus %s mismatch count must be between 0 and 2", l))
		}
		if len(lc.PGroupsToMatchInPositionOne) == 0 || len(lc.PGroupsToMatchInPositionTwo) == 0 {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("locus %s must have PGroups at both positions", l))
		}
	}
	return nil
}

// String renders allowances compactly, e.g. "adult total=2 A:1 B:1 Drb1:1".
func (c AlleleLevelMatchCriteria) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s total=%d", c.SearchType, c.DonorMismatchCount)
	for _, l := range c.SearchedLoci() {
		fmt.Fprintf(&b, " %s:%d", l, c.loci[l].MismatchCount)
	}
	return b.String()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"donormatch/internal/matching/models"
	"donormatch/internal/matching/ports"
	pstrings "donormatch/pkg/platform/strings"
)

var (
	// ErrUngroupedRelations means a locus relation stream returned to a donor
	// id after moving past it. Aggregating such a stream would split one
	// donor's pairs across several results.
	ErrUngroupedRelations = errors.New("locus relations are not grouped by donor id")

	ErrUnsupportedLocus = models.ErrUnsupportedLocus
)

// LocusMatch is one donor's aggregated relations at a single locus.
type LocusMatch struct {
	DonorID int
	Details *models.LocusMatchDetails
}

// PerLocusService turns raw storage relations at one locus into per-donor
// match details.
type PerLocusService struct {
	pgroups   ports.PGroupRepository
	relations ports.LocusMatchRepository
	opts      options
}

func NewPerLocusService(pgroups ports.PGroupRepository, relations ports.LocusMatchRepository, opts ...Option) (*PerLocusService, error) {
	if pgroups == nil {
		return nil, fmt.Errorf("pgroup repository is required")
	}
	if relations == nil {
		return nil, fmt.Errorf("locus match repository is required")
	}
	return &PerLocusService{pgroups: pgroups, relations: relations, opts: newOptions(opts)}, nil
}

// FindMatchesAtLocus streams one LocusMatch per donor with at least one
// relation at locus. A nil donorIDs queries every donor; a non-nil slice
// restricts the query to those donors. Donors not emitted matched nothing.
func (s *PerLocusService) FindMatchesAtLocus(ctx context.Context, locus models.Locus, criteria models.AlleleLevelMatchCriteria, donorIDs []int) iter.Seq2[LocusMatch, error] {
	return func(yield func(LocusMatch, error) bool) {
		if !locus.IsValid() {
			yield(LocusMatch{}, fmt.Errorf("%w: %d", ErrUnsupportedLocus, int(locus)))
			return
		}
		locusCriteria := criteria.LocusCriteria(locus)
		if locusCriteria == nil {
			yield(LocusMatch{}, fmt.Errorf("%w: %s is not searched", ErrUnsupportedLocus, locus))
			return
		}
		if err := ctx.Err(); err != nil {
			yield(LocusMatch{}, err)
			return
		}

		search, err := s.resolveLocusCriteria(ctx, criteria.SearchType, locusCriteria)
		if err != nil {
			yield(LocusMatch{}, err)
			return
		}

		filter := models.MatchingFilteringOptions{DonorIDs: donorIDs}
		if s.opts.dbFiltering.ShouldFilterOnDonorTypeInDatabase(locusCriteria, criteria.SearchType) {
			donorType := criteria.SearchType
			filter.DonorType = &donorType
		}

		var (
			current *LocusMatch
			closed  = make(map[int]struct{})
		)
		for rel, err := range s.relations.GetDonorMatchesAtLocus(ctx, locus, search, filter) {
			if err != nil {
				yield(LocusMatch{}, err)
				return
			}
			pair := models.PositionPair{Search: rel.SearchTypePosition, Match: rel.MatchingTypePosition}
			if current != nil && current.DonorID == rel.DonorID {
				current.Details.AddPair(pair)
				continue
			}
			if _, seen := closed[rel.DonorID]; seen {
				yield(LocusMatch{}, fmt.Errorf("%w: donor %d at locus %s", ErrUngroupedRelations, rel.DonorID, locus))
				return
			}
			if current != nil {
				closed[current.DonorID] = struct{}{}
				if !yield(*current, nil) {
					return
				}
			}
			current = &LocusMatch{DonorID: rel.DonorID, Details: models.NewLocusMatchDetails(pair)}
		}
		if current != nil {
			yield(*current, nil)
		}
	}
}

// resolveLocusCriteria interns the PGroup names of both positions with one
// repository call. Names the repository does not know cannot match any donor
// and are dropped.
func (s *PerLocusService) resolveLocusCriteria(ctx context.Context, searchType models.DonorType, lc *models.AlleleLevelLocusMatchCriteria) (models.LocusSearchCriteria, error) {
	search := models.LocusSearchCriteria{SearchDonorType: searchType, MismatchCount: lc.MismatchCount}

	names := pstrings.Union(lc.PGroupsToMatchInPositionOne, lc.PGroupsToMatchInPositionTwo)
	if len(names) == 0 {
		return search, nil
	}
	ids, err := s.pgroups.GetPGroupIDs(ctx, names)
	if err != nil {
		return search, err
	}

	search.PGroupIDsToMatchInPositionOne = lookupIDs(ids, lc.PGroupsToMatchInPositionOne)
	search.PGroupIDsToMatchInPositionTwo = lookupIDs(ids, lc.PGroupsToMatchInPositionTwo)
	return search, nil
}

func lookupIDs(ids map[string]int, names []string) []int {
	out := make([]int, 0, len(names))
	for _, name := range pstrings.DedupeAndTrim(names) {
		if id, ok := ids[name]; ok {
			out = append(out, id)
		}
	}
	return out
}

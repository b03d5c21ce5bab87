package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"donormatch/internal/matching/calculator"
	"donormatch/internal/matching/models"
	"donormatch/pkg/testutil"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.Require().NoError(s.store.AddDonors(
		testutil.NewDonor(30).Typed(models.LocusA, "a1", "a2").Build(),
		testutil.NewDonor(10).Typed(models.LocusA, "a1", "a1").Build(),
		testutil.NewDonor(20).Cord().Typed(models.LocusA, "a3", "a2").Build(),
		testutil.NewDonor(40).Build(),
	))
}

func (s *MemoryStoreSuite) relationsAt(locus models.Locus, one, two []string, opts models.MatchingFilteringOptions) []models.PotentialHlaMatchRelation {
	ids, err := s.store.GetPGroupIDs(s.ctx, append(append([]string{}, one...), two...))
	s.Require().NoError(err)

	criteria := models.LocusSearchCriteria{SearchDonorType: models.DonorTypeAdult}
	for _, n := range one {
		if id, ok := ids[n]; ok {
			criteria.PGroupIDsToMatchInPositionOne = append(criteria.PGroupIDsToMatchInPositionOne, id)
		}
	}
	for _, n := range two {
		if id, ok := ids[n]; ok {
			criteria.PGroupIDsToMatchInPositionTwo = append(criteria.PGroupIDsToMatchInPositionTwo, id)
		}
	}

	var rels []models.PotentialHlaMatchRelation
	for rel, err := range s.store.GetDonorMatchesAtLocus(s.ctx, locus, criteria, opts) {
		s.Require().NoError(err)
		rels = append(rels, rel)
	}
	return rels
}

func rel(donorID int, search, match models.LocusPosition) models.PotentialHlaMatchRelation {
	return models.PotentialHlaMatchRelation{Locus: models.LocusA, DonorID: donorID, SearchTypePosition: search, MatchingTypePosition: match}
}

// =============================================================================
// PGroup Resolution
// =============================================================================

func (s *MemoryStoreSuite) TestGetPGroupIDs() {
	s.Run("known names resolve and unknown names are omitted", func() {
		ids, err := s.store.GetPGroupIDs(s.ctx, []string{"a1", "a3", "missing"})
		s.Require().NoError(err)
		s.Len(ids, 2)
		s.Contains(ids, "a1")
		s.Contains(ids, "a3")
		s.NotEqual(ids["a1"], ids["a3"])
	})

	s.Run("cancelled context fails", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.store.GetPGroupIDs(ctx, []string{"a1"})
		s.ErrorIs(err, context.Canceled)
	})
}

// =============================================================================
// Locus Relations
// =============================================================================

func (s *MemoryStoreSuite) TestGetDonorMatchesAtLocus() {
	s.Run("relations are ordered by donor id and untyped donors pair directly", func() {
		rels := s.relationsAt(models.LocusA, []string{"a1"}, []string{"a2"}, models.MatchingFilteringOptions{})
		s.Equal([]models.PotentialHlaMatchRelation{
			rel(10, models.PositionOne, models.PositionOne),
			rel(10, models.PositionOne, models.PositionTwo),
			rel(20, models.PositionTwo, models.PositionTwo),
			rel(30, models.PositionOne, models.PositionOne),
			rel(30, models.PositionTwo, models.PositionTwo),
			rel(40, models.PositionOne, models.PositionOne),
			rel(40, models.PositionTwo, models.PositionTwo),
		}, rels)
	})

	s.Run("donor type filter", func() {
		cord := models.DonorTypeCord
		rels := s.relationsAt(models.LocusA, []string{"a1"}, []string{"a2"}, models.MatchingFilteringOptions{DonorType: &cord})
		s.Equal([]models.PotentialHlaMatchRelation{rel(20, models.PositionTwo, models.PositionTwo)}, rels)
	})

	s.Run("donor id filter ignores unknown and duplicate ids", func() {
		rels := s.relationsAt(models.LocusA, []string{"a1"}, []string{"a2"}, models.MatchingFilteringOptions{DonorIDs: []int{30, 99, 10, 30}})
		s.Require().Len(rels, 4)
		s.Equal(10, rels[0].DonorID)
		s.Equal(30, rels[3].DonorID)
	})

	s.Run("empty donor id filter matches nothing", func() {
		rels := s.relationsAt(models.LocusA, []string{"a1"}, []string{"a2"}, models.MatchingFilteringOptions{DonorIDs: []int{}})
		s.Empty(rels)
	})

	s.Run("unknown PGroups still return untyped donors", func() {
		rels := s.relationsAt(models.LocusA, []string{"zz"}, []string{"zz"}, models.MatchingFilteringOptions{})
		s.Equal([]models.PotentialHlaMatchRelation{
			rel(40, models.PositionOne, models.PositionOne),
			rel(40, models.PositionTwo, models.PositionTwo),
		}, rels)
	})

	s.Run("cancelled context stops the stream", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		var gotErr error
		for _, err := range s.store.GetDonorMatchesAtLocus(ctx, models.LocusA, models.LocusSearchCriteria{}, models.MatchingFilteringOptions{}) {
			gotErr = err
		}
		s.ErrorIs(gotErr, context.Canceled)
	})
}

// =============================================================================
// Donors
// =============================================================================

func (s *MemoryStoreSuite) TestAddAndGetDonors() {
	s.Run("missing ids are omitted", func() {
		donors, err := s.store.GetDonors(s.ctx, []int{10, 20, 77})
		s.Require().NoError(err)
		s.Len(donors, 2)
		s.Equal(models.DonorTypeCord, donors[20].DonorType)
	})

	s.Run("re-adding a donor replaces it", func() {
		s.Require().NoError(s.store.AddDonors(testutil.NewDonor(10).Unavailable().Build()))
		donors, err := s.store.GetDonors(s.ctx, []int{10})
		s.Require().NoError(err)
		s.False(donors[10].IsAvailableForSearch)

		rels := s.relationsAt(models.LocusA, []string{"a1"}, []string{"a2"}, models.MatchingFilteringOptions{DonorIDs: []int{10}})
		s.Len(rels, 2, "donor 10 is now untyped at A")
	})

	s.Run("partial typing is rejected", func() {
		partial := testutil.NewDonor(50).Build()
		partial.Hla[models.LocusB] = &models.LocusTyping{PositionOne: []string{"b1"}}
		err := s.store.AddDonors(partial)
		s.ErrorIs(err, calculator.ErrPartialLocusTyping)

		donors, err := s.store.GetDonors(s.ctx, []int{50})
		s.Require().NoError(err)
		s.Empty(donors)
	})
}

package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"donormatch/internal/matching/calculator"
	"donormatch/internal/matching/models"
	"donormatch/internal/matching/ports"
	"donormatch/internal/matching/service"
	"donormatch/internal/matching/store/memory"
	"donormatch/pkg/platform/sentinel"
	"donormatch/pkg/testutil"
)

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres)
	lite := New(nil, DialectSQLite)
	query := `SELECT 1 FROM t WHERE a = ? AND b = ?`

	assert.Equal(t, `SELECT 1 FROM t WHERE a = $1 AND b = $2`, pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestUnavailable(t *testing.T) {
	assert.ErrorIs(t, unavailable(driver.ErrBadConn), sentinel.ErrUnavailable)
	assert.ErrorIs(t, unavailable(&net.OpError{Op: "dial", Err: errors.New("refused")}), sentinel.ErrUnavailable)

	syntax := errors.New("syntax error")
	assert.Same(t, syntax, unavailable(syntax))
}

func TestDialectForDriver(t *testing.T) {
	for driver, want := range map[string]Dialect{"pgx": DialectPostgres, "postgres": DialectPostgres, "sqlite": DialectSQLite} {
		got, err := DialectForDriver(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got, driver)
	}
	_, err := DialectForDriver("mysql")
	assert.Error(t, err)
}

// =============================================================================
// SQLite Store Suite
// =============================================================================
// A file-backed database is used because relation streams nest and each
// needs its own connection; in-memory SQLite gives every connection a
// separate database.

type SQLiteStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	dsn := filepath.Join(s.T().TempDir(), "donors.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	store, err := Open(s.ctx, "sqlite", dsn)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = store.Close() })
	s.Require().NoError(store.EnsureSchema(s.ctx))
	s.store = store
}

func (s *SQLiteStoreSuite) TestEnsureSchemaIsIdempotent() {
	s.NoError(s.store.EnsureSchema(s.ctx))
}

func (s *SQLiteStoreSuite) TestSeedAndGetDonors() {
	donor := testutil.NewDonor(4).Cord().WithRegistry("NMDP").
		TypedGroups(models.LocusA, []string{"A*01", "A*03"}, []string{"A*02"}).
		TypedGroups(models.LocusC, []string{}, []string{}).
		Build()
	donor.ExternalCode = "EXT-4"
	s.Require().NoError(s.store.SeedDonors(s.ctx, donor, testutil.NewDonor(5).Unavailable().Build()))

	s.Run("round trips typing and untyped loci", func() {
		donors, err := s.store.GetDonors(s.ctx, []int{4, 5, 6})
		s.Require().NoError(err)
		s.Require().Len(donors, 2)

		got := donors[4]
		s.Equal(models.DonorTypeCord, got.DonorType)
		s.Equal("NMDP", got.RegistryCode)
		s.Equal("EXT-4", got.ExternalCode)
		s.True(got.IsAvailableForSearch)
		s.Equal([]string{"A*01", "A*03"}, got.Hla[models.LocusA].PositionOne)
		s.Equal([]string{"A*02"}, got.Hla[models.LocusA].PositionTwo)
		s.Empty(got.Hla[models.LocusC].PositionOne)
		s.NotNil(got.Hla[models.LocusC], "typed locus without PGroups stays typed")
		s.Nil(got.Hla[models.LocusB])

		s.False(donors[5].IsAvailableForSearch)
	})

	s.Run("reseeding replaces typing", func() {
		s.Require().NoError(s.store.SeedDonors(s.ctx, testutil.NewDonor(4).Typed(models.LocusB, "B*07", "B*08").Build()))
		donors, err := s.store.GetDonors(s.ctx, []int{4})
		s.Require().NoError(err)
		s.Nil(donors[4].Hla[models.LocusA])
		s.Equal([]string{"B*07"}, donors[4].Hla[models.LocusB].PositionOne)
		s.Equal(models.DonorTypeAdult, donors[4].DonorType)
	})

	s.Run("partial typing is rejected", func() {
		partial := testutil.NewDonor(9).Build()
		partial.Hla[models.LocusA] = &models.LocusTyping{PositionTwo: []string{"A*01"}}
		s.ErrorIs(s.store.SeedDonors(s.ctx, partial), calculator.ErrPartialLocusTyping)
	})

	s.Run("empty id list returns no donors", func() {
		donors, err := s.store.GetDonors(s.ctx, nil)
		s.Require().NoError(err)
		s.Empty(donors)
	})
}

func (s *SQLiteStoreSuite) TestCorruptPositionsAreInvalidState() {
	s.Require().NoError(s.store.SeedDonors(s.ctx, testutil.NewDonor(1).Typed(models.LocusA, "A*01", "A*02").Build()))
	ids, err := s.store.GetPGroupIDs(s.ctx, []string{"A*01"})
	s.Require().NoError(err)
	_, err = s.store.DB().ExecContext(s.ctx,
		`INSERT INTO donor_pgroups (donor_id, locus, type_position, pgroup_id) VALUES (1, ?, 3, ?)`,
		int(models.LocusA), ids["A*01"])
	s.Require().NoError(err)

	s.Run("relation stream", func() {
		criteria := models.LocusSearchCriteria{PGroupIDsToMatchInPositionOne: []int{ids["A*01"]}}
		var streamErr error
		for _, err := range s.store.GetDonorMatchesAtLocus(s.ctx, models.LocusA, criteria, models.MatchingFilteringOptions{}) {
			if err != nil {
				streamErr = err
				break
			}
		}
		s.ErrorIs(streamErr, sentinel.ErrInvalidState)
	})

	s.Run("donor hydration", func() {
		_, err := s.store.GetDonors(s.ctx, []int{1})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *SQLiteStoreSuite) TestGetPGroupIDs() {
	s.Require().NoError(s.store.SeedDonors(s.ctx, testutil.NewDonor(1).Typed(models.LocusA, "A*01", "A*02").Build()))

	ids, err := s.store.GetPGroupIDs(s.ctx, []string{"A*01", "A*02", "A*99"})
	s.Require().NoError(err)
	s.Len(ids, 2)
	s.NotEqual(ids["A*01"], ids["A*02"])
}

// TestRelationsMatchMemoryStore seeds the same random registry into both
// stores and compares their relation streams.
func (s *SQLiteStoreSuite) TestRelationsMatchMemoryStore() {
	rng := rand.New(rand.NewPCG(5, 8))
	mem := memory.New()
	var donors []*models.Donor
	for id := 1; id <= 120; id++ {
		b := testutil.NewDonor(id * 2)
		if rng.IntN(3) == 0 {
			b.Cord()
		}
		for _, l := range models.AllLoci {
			if rng.IntN(6) == 0 {
				continue
			}
			b.TypedGroups(l, randomNames(rng, l), randomNames(rng, l))
		}
		donors = append(donors, b.Build())
	}
	s.Require().NoError(mem.AddDonors(donors...))
	s.Require().NoError(s.store.SeedDonors(s.ctx, donors...))

	cord := models.DonorTypeCord
	filters := []models.MatchingFilteringOptions{
		{},
		{DonorType: &cord},
		{DonorIDs: []int{2, 8, 40, 41, 200}},
		{DonorType: &cord, DonorIDs: []int{4, 6, 8, 10, 12, 14, 16}},
	}

	for _, l := range models.AllLoci {
		names := []string{fmt.Sprintf("%s*1", l), fmt.Sprintf("%s*2", l), fmt.Sprintf("%s*3", l)}
		for _, opts := range filters {
			want := s.relations(mem, l, names, opts)
			got := s.relations(s.store, l, names, opts)
			s.Equal(want, got, "locus %s filter %+v", l, opts)
		}
	}
}

// TestSearchOverSQLite runs whole searches against both stores; the nested
// per-locus streams each hold a pooled connection while they are drained.
func (s *SQLiteStoreSuite) TestSearchOverSQLite() {
	rng := rand.New(rand.NewPCG(21, 34))
	mem := memory.New()
	var donors []*models.Donor
	for id := 1; id <= 80; id++ {
		b := testutil.NewDonor(id)
		if rng.IntN(3) == 0 {
			b.Cord()
		}
		for _, l := range models.AllLoci {
			if rng.IntN(8) == 0 {
				continue
			}
			one := testutil.PatientPGroup(l, models.LocusPosition(1+rng.IntN(2)))
			two := fmt.Sprintf("%s*%02d", l, 1+rng.IntN(3))
			b.Typed(l, one, two)
		}
		donors = append(donors, b.Build())
	}
	s.Require().NoError(mem.AddDonors(donors...))
	s.Require().NoError(s.store.SeedDonors(s.ctx, donors...))

	search := func(src relationSource, donorRepo ports.DonorRepository, criteria models.AlleleLevelMatchCriteria) []int {
		perLocus, err := service.NewPerLocusService(src, src)
		s.Require().NoError(err)
		donorMatching, err := service.NewDonorMatchingService(perLocus, service.WithBatchSize(5))
		s.Require().NoError(err)
		svc, err := service.NewMatchingService(donorMatching, donorRepo, service.WithHydrationBatchSize(9))
		s.Require().NoError(err)
		results, err := svc.Search(s.ctx, criteria)
		s.Require().NoError(err)
		ids := make([]int, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.DonorID)
		}
		return ids
	}

	for total := 0; total <= 3; total++ {
		for _, searchType := range []models.DonorType{models.DonorTypeAdult, models.DonorTypeCord} {
			criteria := testutil.PatientCriteria(searchType, total, map[models.Locus]int{
				models.LocusA: 1, models.LocusB: 2, models.LocusDrb1: 1, models.LocusC: 2,
			})
			s.Equal(search(mem, mem, criteria), search(s.store, s.store, criteria), criteria.String())
		}
	}
}

type relationSource interface {
	ports.PGroupRepository
	ports.LocusMatchRepository
}

// relations resolves names[0:2] for position one and names[1:3] for position
// two, then returns each donor's pair set.
func (s *SQLiteStoreSuite) relations(src relationSource, locus models.Locus, names []string, opts models.MatchingFilteringOptions) map[int][]models.PositionPair {
	ids, err := src.GetPGroupIDs(s.ctx, names)
	s.Require().NoError(err)
	criteria := models.LocusSearchCriteria{}
	for _, n := range names[0:2] {
		if id, ok := ids[n]; ok {
			criteria.PGroupIDsToMatchInPositionOne = append(criteria.PGroupIDsToMatchInPositionOne, id)
		}
	}
	for _, n := range names[1:3] {
		if id, ok := ids[n]; ok {
			criteria.PGroupIDsToMatchInPositionTwo = append(criteria.PGroupIDsToMatchInPositionTwo, id)
		}
	}

	out := make(map[int][]models.PositionPair)
	last := 0
	for rel, err := range src.GetDonorMatchesAtLocus(s.ctx, locus, criteria, opts) {
		s.Require().NoError(err)
		s.Require().GreaterOrEqual(rel.DonorID, last, "relations must be ordered by donor id")
		last = rel.DonorID
		pairs := append(out[rel.DonorID], models.PositionPair{Search: rel.SearchTypePosition, Match: rel.MatchingTypePosition})
		out[rel.DonorID] = models.NewLocusMatchDetails(pairs...).PositionPairs()
	}
	return out
}

func randomNames(rng *rand.Rand, l models.Locus) []string {
	n := 1 + rng.IntN(2)
	names := make([]string, 0, n)
	for range n {
		names = append(names, fmt.Sprintf("%s*%d", l, 1+rng.IntN(4)))
	}
	return names
}

package service

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"donormatch/internal/matching/calculator"
	"donormatch/internal/matching/filtering"
	"donormatch/internal/matching/models"
	"donormatch/pkg/testutil"
)

// randomDonors builds a registry where roughly half the typed positions carry
// one of the patient's PGroups, some loci are untyped, and ids are sparse.
func randomDonors(rng *rand.Rand, n int) []*models.Donor {
	donors := make([]*models.Donor, 0, n)
	for i := 1; i <= n; i++ {
		b := testutil.NewDonor(i * 3)
		if rng.IntN(3) == 0 {
			b.Cord()
		}
		if rng.IntN(10) == 0 {
			b.Unavailable()
		}
		for _, l := range models.AllLoci {
			if rng.IntN(8) == 0 {
				continue
			}
			b.TypedGroups(l, randomGroups(rng, l), randomGroups(rng, l))
		}
		donors = append(donors, b.Build())
	}
	return donors
}

func randomGroups(rng *rand.Rand, l models.Locus) []string {
	pool := []string{
		testutil.PatientPGroup(l, models.PositionOne),
		testutil.PatientPGroup(l, models.PositionTwo),
		l.String() + "*03",
		l.String() + "*04",
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:1+rng.IntN(2)]
}

func randomCriteria(rng *rand.Rand) models.AlleleLevelMatchCriteria {
	allowances := make(map[models.Locus]int)
	for _, l := range models.RequiredLoci {
		allowances[l] = rng.IntN(3)
	}
	for _, l := range []models.Locus{models.LocusC, models.LocusDqb1, models.LocusDpb1} {
		if rng.IntN(2) == 0 {
			allowances[l] = rng.IntN(3)
		}
	}
	searchType := models.DonorTypeAdult
	if rng.IntN(2) == 0 {
		searchType = models.DonorTypeCord
	}
	return testutil.PatientCriteria(searchType, rng.IntN(4), allowances).WithBetterMatches(rng.IntN(4) == 0)
}

// referenceMatches scores every donor in memory and keeps those meeting the
// per-locus and total criteria.
func referenceMatches(t *testing.T, donors []*models.Donor, criteria models.AlleleLevelMatchCriteria) map[int]*models.MatchResult {
	t.Helper()
	calc := calculator.New()
	filter := filtering.New()

	out := make(map[int]*models.MatchResult)
	for _, d := range donors {
		r, err := calc.MatchDonor(criteria, d)
		require.NoError(t, err)
		ok := filter.FulfilsTotalMatchCriteria(r, criteria)
		for _, l := range criteria.SearchedLoci() {
			ok = ok && filter.FulfilsPerLocusMatchCriteria(r, criteria, l)
		}
		if ok {
			r.PopulateMismatches()
			out[d.DonorID] = r
		}
	}
	return out
}

// referenceSearch additionally applies the hydration-stage rules and returns
// results in donor id order.
func referenceSearch(t *testing.T, donors []*models.Donor, criteria models.AlleleLevelMatchCriteria) []*models.MatchResult {
	t.Helper()
	filter := filtering.New()
	byID := make(map[int]*models.Donor, len(donors))
	for _, d := range donors {
		byID[d.DonorID] = d
	}

	var out []*models.MatchResult
	for id, r := range referenceMatches(t, donors, criteria) {
		d := byID[id]
		if !d.IsAvailableForSearch {
			continue
		}
		r.Donor = d
		if !filter.FulfilsSearchTypeCriteria(r, criteria) {
			continue
		}
		ok, err := filter.FulfilsSearchTypeSpecificCriteria(r, criteria)
		require.NoError(t, err)
		if ok {
			r.MarkFullyPopulated(d)
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *models.MatchResult) int { return a.DonorID - b.DonorID })
	return out
}

// requireSameDetails compares the position pairs of every searched locus.
func requireSameDetails(t *testing.T, criteria models.AlleleLevelMatchCriteria, want, got *models.MatchResult) {
	t.Helper()
	for _, l := range criteria.SearchedLoci() {
		wd, gd := want.MatchDetailsForLocus(l), got.MatchDetailsForLocus(l)
		require.NotNil(t, gd, "donor %d locus %s not evaluated", got.DonorID, l)
		require.Equal(t, wd.PositionPairs(), gd.PositionPairs(), "donor %d locus %s", got.DonorID, l)
	}
	require.ElementsMatch(t, want.Mismatches, got.Mismatches, "donor %d mismatches", got.DonorID)
}

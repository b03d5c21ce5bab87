package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"donormatch/internal/matching/models"
)

func locusCriteria(mismatches int) *models.AlleleLevelLocusMatchCriteria {
	return &models.AlleleLevelLocusMatchCriteria{
		PGroupsToMatchInPositionOne: []string{"p1"},
		PGroupsToMatchInPositionTwo: []string{"p2"},
		MismatchCount:               mismatches,
	}
}

func TestLociInMatchingOrder(t *testing.T) {
	analyser := NewMatchCriteriaAnalyser(nil)

	tests := []struct {
		name     string
		loci     map[models.Locus]int
		expected []models.Locus
	}{
		{
			name: "required by ascending mismatch then optional",
			loci: map[models.Locus]int{
				models.LocusA: 1, models.LocusB: 0, models.LocusDrb1: 0, models.LocusDqb1: 1,
			},
			expected: []models.Locus{models.LocusDrb1, models.LocusB, models.LocusA, models.LocusDqb1},
		},
		{
			name: "ties broken by Drb1, B, A",
			loci: map[models.Locus]int{
				models.LocusA: 2, models.LocusB: 2, models.LocusDrb1: 2,
			},
			expected: []models.Locus{models.LocusDrb1, models.LocusB, models.LocusA},
		},
		{
			name: "lower allowance beats priority",
			loci: map[models.Locus]int{
				models.LocusA: 0, models.LocusB: 1, models.LocusDrb1: 2,
			},
			expected: []models.Locus{models.LocusA, models.LocusB, models.LocusDrb1},
		},
		{
			name: "optional loci last even when exact",
			loci: map[models.Locus]int{
				models.LocusA: 2, models.LocusB: 2, models.LocusDrb1: 2,
				models.LocusC: 0, models.LocusDqb1: 0, models.LocusDpb1: 0,
			},
			expected: []models.Locus{
				models.LocusDrb1, models.LocusB, models.LocusA,
				models.LocusC, models.LocusDqb1, models.LocusDpb1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := models.NewMatchCriteria(models.DonorTypeAdult, 2)
			for l, mm := range tt.loci {
				criteria = criteria.WithLocus(l, locusCriteria(mm))
			}
			assert.Equal(t, tt.expected, analyser.LociInMatchingOrder(criteria))
		})
	}
}

func TestLociInMatchingOrder_CustomPriority(t *testing.T) {
	analyser := NewMatchCriteriaAnalyser(map[models.Locus]int{
		models.LocusA: 0, models.LocusB: 1, models.LocusDrb1: 2,
	})
	criteria := models.NewMatchCriteria(models.DonorTypeAdult, 0).
		WithLocus(models.LocusA, locusCriteria(0)).
		WithLocus(models.LocusB, locusCriteria(0)).
		WithLocus(models.LocusDrb1, locusCriteria(0)).
		WithLocus(models.LocusDqb1, locusCriteria(0))

	assert.Equal(t,
		[]models.Locus{models.LocusA, models.LocusB, models.LocusDrb1, models.LocusDqb1},
		analyser.LociInMatchingOrder(criteria),
	)
}

func TestShouldFilterOnDonorTypeInDatabase(t *testing.T) {
	t.Run("defaults filter cord searches only", func(t *testing.T) {
		a := NewDatabaseFilteringAnalyser()
		assert.True(t, a.ShouldFilterOnDonorTypeInDatabase(locusCriteria(0), models.DonorTypeCord))
		assert.False(t, a.ShouldFilterOnDonorTypeInDatabase(locusCriteria(0), models.DonorTypeAdult))
	})

	t.Run("broad typing filters any type", func(t *testing.T) {
		a := NewDatabaseFilteringAnalyser(WithBroadPGroupThreshold(4))
		broad := &models.AlleleLevelLocusMatchCriteria{
			PGroupsToMatchInPositionOne: []string{"a", "b"},
			PGroupsToMatchInPositionTwo: []string{"c", "d"},
		}
		assert.True(t, a.ShouldFilterOnDonorTypeInDatabase(broad, models.DonorTypeAdult))
		assert.False(t, a.ShouldFilterOnDonorTypeInDatabase(locusCriteria(0), models.DonorTypeAdult))
	})

	t.Run("filtered types can be replaced", func(t *testing.T) {
		a := NewDatabaseFilteringAnalyser(WithFilteredDonorTypes(models.DonorTypeAdult))
		assert.True(t, a.ShouldFilterOnDonorTypeInDatabase(locusCriteria(0), models.DonorTypeAdult))
		assert.False(t, a.ShouldFilterOnDonorTypeInDatabase(locusCriteria(0), models.DonorTypeCord))
	})
}

package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"donormatch/internal/matching/models"
)

// SearchFunc runs a donor search and returns results ordered by donor id.
type SearchFunc func(ctx context.Context, criteria models.AlleleLevelMatchCriteria) ([]*models.MatchResult, error)

// SearchCase is one search against a shared registry and the donor ids it
// must return, in order.
type SearchCase struct {
	When     string
	Criteria models.AlleleLevelMatchCriteria
	Then     string
	WantIDs  []int
}

// RunSearchCases runs each case as a "Given/When/Then" subtest so failures
// read as the registry setup, the search and the expected donors.
func RunSearchCases(t *testing.T, given string, search SearchFunc, cases []SearchCase) {
	t.Helper()
	t.Run("Given "+given, func(t *testing.T) {
		for _, tc := range cases {
			t.Run("When "+tc.When+"/Then "+tc.Then, func(t *testing.T) {
				results, err := search(t.Context(), tc.Criteria)
				require.NoError(t, err)
				ids := make([]int, 0, len(results))
				for _, r := range results {
					ids = append(ids, r.DonorID)
				}
				require.Equal(t, tc.WantIDs, ids)
			})
		}
	})
}

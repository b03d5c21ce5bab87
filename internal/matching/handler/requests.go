package handler

import (
	"fmt"

	"donormatch/internal/matching/models"
	dErrors "donormatch/pkg/domain-errors"
	pstrings "donormatch/pkg/platform/strings"
)

// SearchRequest is the JSON body of POST /matching/searches. Loci are keyed by
// name ("A", "B", "Drb1", ...); loci left out are not searched.
type SearchRequest struct {
	SearchType           string                  `json:"search_type"`
	DonorMismatchCount   *int                    `json:"donor_mismatch_count"`
	IncludeBetterMatches bool                    `json:"include_better_matches"`
	Loci                 map[string]LocusRequest `json:"loci"`
}

type LocusRequest struct {
	PositionOne   []string `json:"position_one"`
	PositionTwo   []string `json:"position_two"`
	MismatchCount int      `json:"mismatch_count"`
}

// ToCriteria converts the request. Structural checks beyond parsing are left
// to AlleleLevelMatchCriteria.Validate inside the search.
func (r SearchRequest) ToCriteria() (models.AlleleLevelMatchCriteria, error) {
	searchType, err := models.ParseDonorType(r.SearchType)
	if err != nil {
		return models.AlleleLevelMatchCriteria{}, err
	}
	if r.DonorMismatchCount == nil {
		return models.AlleleLevelMatchCriteria{}, dErrors.New(dErrors.CodeBadRequest, "donor_mismatch_count is required")
	}

	criteria := models.NewMatchCriteria(searchType, *r.DonorMismatchCount).
		WithBetterMatches(r.IncludeBetterMatches)
	seen := make(map[models.Locus]string, len(r.Loci))
	for name, lr := range r.Loci {
		l, err := models.ParseLocus(name)
		if err != nil {
			return models.AlleleLevelMatchCriteria{}, err
		}
		if prev, ok := seen[l]; ok {
			return models.AlleleLevelMatchCriteria{}, dErrors.New(dErrors.CodeBadRequest,
				fmt.Sprintf("locus %s given twice (%q and %q)", l, prev, name))
		}
		seen[l] = name
		criteria = criteria.WithLocus(l, &models.AlleleLevelLocusMatchCriteria{
			PGroupsToMatchInPositionOne: pstrings.DedupeAndTrim(lr.PositionOne),
			PGroupsToMatchInPositionTwo: pstrings.DedupeAndTrim(lr.PositionTwo),
			MismatchCount:               lr.MismatchCount,
		})
	}
	return criteria, nil
}

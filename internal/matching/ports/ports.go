// Package ports declares the storage the matching pipeline reads from.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks PGroupRepository,LocusMatchRepository,DonorRepository

import (
	"context"
	"iter"

	"donormatch/internal/matching/models"
)

// PGroupRepository resolves PGroup names to interned ids.
type PGroupRepository interface {
	// GetPGroupIDs returns ids for the names it knows; unknown names are omitted.
	GetPGroupIDs(ctx context.Context, names []string) (map[string]int, error)
}

// LocusMatchRepository streams potential match relations for one locus.
type LocusMatchRepository interface {
	// GetDonorMatchesAtLocus yields every (donor, search position, match
	// position) relation at locus, ordered by donor id so that each donor's
	// relations are contiguous. Donors untyped at the locus are reported with
	// the direct pairs so they score as a full match.
	GetDonorMatchesAtLocus(ctx context.Context, locus models.Locus, criteria models.LocusSearchCriteria, opts models.MatchingFilteringOptions) iter.Seq2[models.PotentialHlaMatchRelation, error]
}

// DonorRepository loads donor records for hydration.
type DonorRepository interface {
	// GetDonors returns the donors that exist among ids, keyed by donor id.
	GetDonors(ctx context.Context, ids []int) (map[int]*models.Donor, error)
}

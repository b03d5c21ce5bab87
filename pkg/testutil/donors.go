package testutil

import (
	"fmt"

	"donormatch/internal/matching/models"
)

// DonorBuilder assembles donors for matching tests. Donors start as
// available adults with every locus untyped.
type DonorBuilder struct {
	donor models.Donor
}

func NewDonor(id int) *DonorBuilder {
	return &DonorBuilder{donor: models.Donor{
		DonorID:              id,
		DonorType:            models.DonorTypeAdult,
		IsAvailableForSearch: true,
	}}
}

func (b *DonorBuilder) WithType(t models.DonorType) *DonorBuilder {
	b.donor.DonorType = t
	return b
}

func (b *DonorBuilder) Cord() *DonorBuilder {
	return b.WithType(models.DonorTypeCord)
}

func (b *DonorBuilder) Unavailable() *DonorBuilder {
	b.donor.IsAvailableForSearch = false
	return b
}

func (b *DonorBuilder) WithRegistry(code string) *DonorBuilder {
	b.donor.RegistryCode = code
	return b
}

// Typed sets a locus to one PGroup per position.
func (b *DonorBuilder) Typed(l models.Locus, one, two string) *DonorBuilder {
	return b.TypedGroups(l, []string{one}, []string{two})
}

func (b *DonorBuilder) TypedGroups(l models.Locus, one, two []string) *DonorBuilder {
	b.donor.Hla[l] = &models.LocusTyping{PositionOne: one, PositionTwo: two}
	return b
}

func (b *DonorBuilder) Build() *models.Donor {
	d := b.donor
	return &d
}

// LocusCriteria builds single-PGroup locus criteria.
func LocusCriteria(one, two string, mismatches int) *models.AlleleLevelLocusMatchCriteria {
	return &models.AlleleLevelLocusMatchCriteria{
		PGroupsToMatchInPositionOne: []string{one},
		PGroupsToMatchInPositionTwo: []string{two},
		MismatchCount:               mismatches,
	}
}

// PatientPGroup names the fixed patient typing used across tests: "A*01" at
// position one of locus A, "A*02" at position two.
func PatientPGroup(l models.Locus, p models.LocusPosition) string {
	return fmt.Sprintf("%s*%02d", l, int(p))
}

// PatientCriteria searches the given loci of the fixed patient with one allowance per
// locus and a total allowance.
func PatientCriteria(searchType models.DonorType, total int, allowances map[models.Locus]int) models.AlleleLevelMatchCriteria {
	c := models.NewMatchCriteria(searchType, total)
	for _, l := range models.AllLoci {
		n, ok := allowances[l]
		if !ok {
			continue
		}
		c = c.WithLocus(l, LocusCriteria(PatientPGroup(l, models.PositionOne), PatientPGroup(l, models.PositionTwo), n))
	}
	return c
}

package models

// LocusTyping holds the PGroups a donor expresses at each position of a locus.
type LocusTyping struct {
	PositionOne []string
	PositionTwo []string
}

// AtPosition returns the PGroups at p.
func (t *LocusTyping) AtPosition(p LocusPosition) []string {
	if p == PositionOne {
		return t.PositionOne
	}
	return t.PositionTwo
}

// PhenotypeInfo is a donor's typing per locus; nil means untyped.
type PhenotypeInfo [LocusCount]*LocusTyping

// Donor is the record hydrated onto match results.
type Donor struct {
	DonorID              int
	ExternalCode         string
	DonorType            DonorType
	RegistryCode         string
	IsAvailableForSearch bool
	Hla                  PhenotypeInfo
}

// PotentialHlaMatchRelation is one storage row: the patient's search position
// shares a PGroup with the donor's matching position at a locus.
type PotentialHlaMatchRelation struct {
	Locus                Locus
	DonorID              int
	SearchTypePosition   LocusPosition
	MatchingTypePosition LocusPosition
}

// LocusSearchCriteria is the storage-facing form of a locus search: PGroup
// names resolved to interned ids.
type LocusSearchCriteria struct {
	SearchDonorType               DonorType
	PGroupIDsToMatchInPositionOne []int
	PGroupIDsToMatchInPositionTwo []int
	MismatchCount                 int
}

// PGroupIDsAtPosition returns the interned ids for p.
func (c LocusSearchCriteria) PGroupIDsAtPosition(p LocusPosition) []int {
	if p == PositionOne {
		return c.PGroupIDsToMatchInPositionOne
	}
	return c.PGroupIDsToMatchInPositionTwo
}

// MatchingFilteringOptions narrows a locus query at the storage layer.
type MatchingFilteringOptions struct {
	// DonorType restricts results to one donor type; nil returns all types.
	DonorType *DonorType
	// DonorIDs restricts results to these donors; nil is unrestricted.
	DonorIDs []int
}

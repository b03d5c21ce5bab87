package models

// LocusMismatch is one unmatched patient position, reported after matching.
type LocusMismatch struct {
	Locus    Locus
	Position LocusPosition
}

// MatchResult accumulates one donor's per-locus outcomes as loci are joined.
// A nil slot means the locus has not been evaluated yet; once a locus stage
// completes every surfaced result holds explicit details for it.
type MatchResult struct {
	DonorID int

	// Set by hydration.
	Donor            *Donor
	IsFullyPopulated bool

	// Set when matching finishes.
	Mismatches []LocusMismatch

	loci [LocusCount]*LocusMatchDetails
}

// NewMatchResult creates an empty accumulator for donorID.
func NewMatchResult(donorID int) *MatchResult {
	return &MatchResult{DonorID: donorID}
}

// SetMatchDetailsForLocus fills l's slot.
func (r *MatchResult) SetMatchDetailsForLocus(l Locus, d *LocusMatchDetails) {
	r.loci[l] = d
}

// MatchDetailsForLocus returns l's details, or nil if l was not evaluated.
func (r *MatchResult) MatchDetailsForLocus(l Locus) *LocusMatchDetails {
	if !l.IsValid() {
		return nil
	}
	return r.loci[l]
}

// IsLocusEvaluated reports whether l's slot is filled.
func (r *MatchResult) IsLocusEvaluated(l Locus) bool {
	return r.MatchDetailsForLocus(l) != nil
}

// EvaluatedLoci lists filled slots in declaration order.
func (r *MatchResult) EvaluatedLoci() []Locus {
	var loci []Locus
	for _, l := range AllLoci {
		if r.loci[l] != nil {
			loci = append(loci, l)
		}
	}
	return loci
}

// TotalMatchCount sums match counts over evaluated loci.
func (r *MatchResult) TotalMatchCount() int {
	total := 0
	for _, d := range r.loci {
		if d != nil {
			total += d.MatchCount()
		}
	}
	return total
}

// TotalMismatchCount sums mismatch counts over evaluated loci.
func (r *MatchResult) TotalMismatchCount() int {
	total := 0
	for _, d := range r.loci {
		if d != nil {
			total += d.MismatchCount()
		}
	}
	return total
}

// PopulateMismatches derives the mismatched positions of every evaluated locus.
func (r *MatchResult) PopulateMismatches() {
	r.Mismatches = r.Mismatches[:0]
	for _, l := range AllLoci {
		d := r.loci[l]
		if d == nil {
			continue
		}
		for _, p := range d.MismatchedPositions() {
			r.Mismatches = append(r.Mismatches, LocusMismatch{Locus: l, Position: p})
		}
	}
}

// MarkFullyPopulated attaches the hydrated donor record.
func (r *MatchResult) MarkFullyPopulated(donor *Donor) {
	r.Donor = donor
	r.IsFullyPopulated = true
}

package models

// PositionPair records that the patient's Search position shares a PGroup
// with the donor's Match position.
type PositionPair struct {
	Search LocusPosition
	Match  LocusPosition
}

// MatchOrientation describes how donor positions line up with the patient's.
type MatchOrientation string

const (
	OrientationDirect MatchOrientation = "direct"
	OrientationCross  MatchOrientation = "cross"
)

// pairSet is a fixed four-bit set over PositionPair values.
type pairSet uint8

func pairBit(p PositionPair) pairSet {
	return 1 << ((int(p.Search)-1)*2 + int(p.Match) - 1)
}

var (
	directPairs = pairBit(PositionPair{PositionOne, PositionOne}) | pairBit(PositionPair{PositionTwo, PositionTwo})
	crossPairs  = pairBit(PositionPair{PositionOne, PositionTwo}) | pairBit(PositionPair{PositionTwo, PositionOne})
)

// LocusMatchDetails is the per-locus outcome for one donor. The match count is
// derived from the observed position pairs: two when a direct or cross pairing
// is complete, one when any pair was observed, zero otherwise.
type LocusMatchDetails struct {
	pairs pairSet
}

// NewLocusMatchDetails builds details from observed pairs. Invalid positions
// are ignored.
func NewLocusMatchDetails(pairs ...PositionPair) *LocusMatchDetails {
	d := &LocusMatchDetails{}
	for _, p := range pairs {
		d.AddPair(p)
	}
	return d
}

// NoMatch returns explicit zero-count details. It is distinct from a nil
// slot, which means the locus has not been evaluated.
func NoMatch() *LocusMatchDetails {
	return &LocusMatchDetails{}
}

// FullMatch returns details scoring two via a direct pairing. Untyped and
// unscored loci use this.
func FullMatch() *LocusMatchDetails {
	return &LocusMatchDetails{pairs: directPairs}
}

// AddPair records an observed pair.
func (d *LocusMatchDetails) AddPair(p PositionPair) {
	if !p.Search.IsValid() || !p.Match.IsValid() {
		return
	}
	d.pairs |= pairBit(p)
}

// HasPair reports whether p was observed.
func (d *LocusMatchDetails) HasPair(p PositionPair) bool {
	return d.pairs&pairBit(p) != 0
}

// PositionPairs lists the observed pairs in a stable order.
func (d *LocusMatchDetails) PositionPairs() []PositionPair {
	var pairs []PositionPair
	for _, s := range Positions {
		for _, m := range Positions {
			p := PositionPair{Search: s, Match: m}
			if d.HasPair(p) {
				pairs = append(pairs, p)
			}
		}
	}
	return pairs
}

// MatchCount is 0, 1 or 2.
func (d *LocusMatchDetails) MatchCount() int {
	switch {
	case d.pairs&directPairs == directPairs, d.pairs&crossPairs == crossPairs:
		return 2
	case d.pairs != 0:
		return 1
	}
	return 0
}

// MismatchCount is 2 - MatchCount.
func (d *LocusMatchDetails) MismatchCount() int {
	return MaxLocusMismatchCount - d.MatchCount()
}

// Orientations lists the complete pairings observed. A homozygous match can be
// both direct and cross.
func (d *LocusMatchDetails) Orientations() []MatchOrientation {
	var o []MatchOrientation
	if d.pairs&directPairs == directPairs {
		o = append(o, OrientationDirect)
	}
	if d.pairs&crossPairs == crossPairs {
		o = append(o, OrientationCross)
	}
	return o
}

// MismatchedPositions lists patient positions left unmatched. When only one
// position can be matched but both share a PGroup with the same donor
// position, position Two is reported.
func (d *LocusMatchDetails) MismatchedPositions() []LocusPosition {
	switch d.MatchCount() {
	case 2:
		return nil
	case 0:
		return []LocusPosition{PositionOne, PositionTwo}
	}
	if !d.searchPositionMatched(PositionOne) {
		return []LocusPosition{PositionOne}
	}
	return []LocusPosition{PositionTwo}
}

func (d *LocusMatchDetails) searchPositionMatched(p LocusPosition) bool {
	return d.HasPair(PositionPair{p, PositionOne}) || d.HasPair(PositionPair{p, PositionTwo})
}

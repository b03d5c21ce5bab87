// Package models holds the HLA matching domain types shared by the matching
// pipeline, its stores and its transport.
package models

import (
	"fmt"
	"strings"

	dErrors "donormatch/pkg/domain-errors"
)

// Locus identifies one of the HLA loci the matcher knows about.
type Locus int

const (
	LocusA Locus = iota
	LocusB
	LocusC
	LocusDqb1
	LocusDrb1
	LocusDpb1

	// LocusCount sizes per-locus arrays.
	LocusCount = 6
)

// AllLoci lists every locus in declaration order.
var AllLoci = [LocusCount]Locus{LocusA, LocusB, LocusC, LocusDqb1, LocusDrb1, LocusDpb1}

// RequiredLoci must be typed for every donor and present in every search.
var RequiredLoci = []Locus{LocusA, LocusB, LocusDrb1}

var locusNames = [LocusCount]string{"A", "B", "C", "Dqb1", "Drb1", "Dpb1"}

func (l Locus) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("Locus(%d)", int(l))
	}
	return locusNames[l]
}

// IsValid checks if the locus is one of the supported enum values.
func (l Locus) IsValid() bool {
	return l >= LocusA && l <= LocusDpb1
}

// IsRequired reports whether l is one of A, B or Drb1.
func (l Locus) IsRequired() bool {
	switch l {
	case LocusA, LocusB, LocusDrb1:
		return true
	}
	return false
}

// ParseLocus accepts locus names case-insensitively ("drb1", "DRB1", "Drb1").
func ParseLocus(s string) (Locus, error) {
	for i, name := range locusNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Locus(i), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown locus %q", s))
}

// LocusPosition is one of the two alleles typed at a diploid locus.
type LocusPosition int

const (
	PositionOne LocusPosition = 1
	PositionTwo LocusPosition = 2
)

// Positions lists both positions in order.
var Positions = [2]LocusPosition{PositionOne, PositionTwo}

func (p LocusPosition) String() string {
	switch p {
	case PositionOne:
		return "One"
	case PositionTwo:
		return "Two"
	}
	return fmt.Sprintf("LocusPosition(%d)", int(p))
}

// IsValid checks if the position is One or Two.
func (p LocusPosition) IsValid() bool {
	return p == PositionOne || p == PositionTwo
}

// Other returns the opposite position.
func (p LocusPosition) Other() LocusPosition {
	if p == PositionOne {
		return PositionTwo
	}
	return PositionOne
}

// DonorType distinguishes adult donors from cord blood units.
type DonorType string

const (
	DonorTypeAdult DonorType = "adult"
	DonorTypeCord  DonorType = "cord"
)

// IsValid checks if the donor type is one of the supported enum values.
func (t DonorType) IsValid() bool {
	switch t {
	case DonorTypeAdult, DonorTypeCord:
		return true
	}
	return false
}

func (t DonorType) String() string {
	return string(t)
}

// ParseDonorType creates a DonorType from a string, validating it.
func ParseDonorType(s string) (DonorType, error) {
	t := DonorType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid donor type %q: must be 'adult' or 'cord'", s))
	}
	return t, nil
}

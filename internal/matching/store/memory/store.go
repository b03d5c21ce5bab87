// Package memory is an in-process donor store. It implements every storage
// port the matching pipeline reads from and is the reference for the SQL
// store's relation semantics.
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"donormatch/internal/matching/calculator"
	"donormatch/internal/matching/models"
)

const ctxCheckInterval = 1024

// Store keeps donors with their typing interned to PGroup ids.
type Store struct {
	mu        sync.RWMutex
	pgroupIDs map[string]int
	donors    map[int]*entry
	order     []int
}

type entry struct {
	donor *models.Donor
	// pgroups[locus][position-1]; untyped[locus] marks loci with no typing.
	pgroups [models.LocusCount][2][]int
	untyped [models.LocusCount]bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		pgroupIDs: make(map[string]int),
		donors:    make(map[int]*entry),
	}
}

// AddDonors inserts or replaces donors. A locus typed at only one position
// is rejected and nothing is stored.
func (s *Store) AddDonors(donors ...*models.Donor) error {
	for _, d := range donors {
		for _, l := range models.AllLoci {
			if t := d.Hla[l]; t != nil && (t.PositionOne == nil) != (t.PositionTwo == nil) {
				return fmt.Errorf("donor %d locus %s: %w", d.DonorID, l, calculator.ErrPartialLocusTyping)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range donors {
		e := &entry{donor: d}
		for _, l := range models.AllLoci {
			t := d.Hla[l]
			if t == nil || t.PositionOne == nil {
				e.untyped[l] = true
				continue
			}
			for i, p := range models.Positions {
				e.pgroups[l][i] = s.internLocked(t.AtPosition(p))
			}
		}
		if _, exists := s.donors[d.DonorID]; !exists {
			s.order = append(s.order, d.DonorID)
		}
		s.donors[d.DonorID] = e
	}
	slices.Sort(s.order)
	return nil
}

func (s *Store) internLocked(names []string) []int {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, ok := s.pgroupIDs[name]
		if !ok {
			id = len(s.pgroupIDs) + 1
			s.pgroupIDs[name] = id
		}
		ids = append(ids, id)
	}
	return ids
}

// GetPGroupIDs resolves known PGroup names.
func (s *Store) GetPGroupIDs(ctx context.Context, names []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]int, len(names))
	for _, name := range names {
		if id, ok := s.pgroupIDs[name]; ok {
			ids[name] = id
		}
	}
	return ids, nil
}

// GetDonorMatchesAtLocus yields relations in ascending donor id order.
// The donor set is captured when iteration starts.
func (s *Store) GetDonorMatchesAtLocus(
	ctx context.Context,
	locus models.Locus,
	criteria models.LocusSearchCriteria,
	opts models.MatchingFilteringOptions,
) iter.Seq2[models.PotentialHlaMatchRelation, error] {
	return func(yield func(models.PotentialHlaMatchRelation, error) bool) {
		if !locus.IsValid() {
			yield(models.PotentialHlaMatchRelation{}, fmt.Errorf("unsupported locus %d", int(locus)))
			return
		}
		entries := s.snapshot(opts.DonorIDs)

		wanted := [2]map[int]struct{}{
			toSet(criteria.PGroupIDsToMatchInPositionOne),
			toSet(criteria.PGroupIDsToMatchInPositionTwo),
		}
		for n, e := range entries {
			if n%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					yield(models.PotentialHlaMatchRelation{}, err)
					return
				}
			}
			if opts.DonorType != nil && e.donor.DonorType != *opts.DonorType {
				continue
			}
			for _, rel := range relations(e, locus, wanted) {
				if !yield(rel, nil) {
					return
				}
			}
		}
	}
}

// GetDonors returns the stored donors among ids.
func (s *Store) GetDonors(ctx context.Context, ids []int) (map[int]*models.Donor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	donors := make(map[int]*models.Donor, len(ids))
	for _, id := range ids {
		if e, ok := s.donors[id]; ok {
			donors[id] = e.donor
		}
	}
	return donors, nil
}

// snapshot returns entries in donor id order, restricted to ids when ids is
// non-nil.
func (s *Store) snapshot(ids []int) []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ids == nil {
		entries := make([]*entry, 0, len(s.order))
		for _, id := range s.order {
			entries = append(entries, s.donors[id])
		}
		return entries
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	entries := make([]*entry, 0, len(sorted))
	for _, id := range sorted {
		if e, ok := s.donors[id]; ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func relations(e *entry, locus models.Locus, wanted [2]map[int]struct{}) []models.PotentialHlaMatchRelation {
	id := e.donor.DonorID
	if e.untyped[locus] {
		return []models.PotentialHlaMatchRelation{
			{Locus: locus, DonorID: id, SearchTypePosition: models.PositionOne, MatchingTypePosition: models.PositionOne},
			{Locus: locus, DonorID: id, SearchTypePosition: models.PositionTwo, MatchingTypePosition: models.PositionTwo},
		}
	}

	var rels []models.PotentialHlaMatchRelation
	for si, search := range models.Positions {
		for mi, match := range models.Positions {
			if intersects(wanted[si], e.pgroups[locus][mi]) {
				rels = append(rels, models.PotentialHlaMatchRelation{
					Locus:                locus,
					DonorID:              id,
					SearchTypePosition:   search,
					MatchingTypePosition: match,
				})
			}
		}
	}
	return rels
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func intersects(set map[int]struct{}, ids []int) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

package sqlstore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"donormatch/internal/matching/models"
	"donormatch/pkg/platform/sentinel"
)

const pgroupLookupChunk = 500

// GetPGroupIDs resolves known PGroup names.
func (s *Store) GetPGroupIDs(ctx context.Context, names []string) (map[string]int, error) {
	ids := make(map[string]int, len(names))
	for chunk := range slices.Chunk(names, pgroupLookupChunk) {
		filter, args := s.stringsFilter("name", chunk)
		rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, name FROM pgroups WHERE `+filter), args...)
		if err != nil {
			return nil, fmt.Errorf("select pgroups: %w", unavailable(err))
		}
		for rows.Next() {
			var (
				id   int
				name string
			)
			if err := rows.Scan(&id, &name); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan pgroup: %w", err)
			}
			ids[name] = id
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate pgroups: %w", err)
		}
	}
	return ids, nil
}

// GetDonorMatchesAtLocus streams relations ordered by donor id. Typed donors
// produce one row per (search position, donor position) sharing a PGroup;
// donors untyped at the locus produce the two direct pairs.
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
		if opts.DonorIDs != nil && len(opts.DonorIDs) == 0 {
			return
		}

		query, args := s.relationsQuery(locus, criteria, opts)
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			yield(models.PotentialHlaMatchRelation{}, fmt.Errorf("select locus %s relations: %w", locus, unavailable(err)))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var donorID, search, match int
			if err := rows.Scan(&donorID, &search, &match); err != nil {
				yield(models.PotentialHlaMatchRelation{}, fmt.Errorf("scan locus %s relation: %w", locus, err))
				return
			}
			rel := models.PotentialHlaMatchRelation{
				Locus:                locus,
				DonorID:              donorID,
				SearchTypePosition:   models.LocusPosition(search),
				MatchingTypePosition: models.LocusPosition(match),
			}
			if !rel.SearchTypePosition.IsValid() || !rel.MatchingTypePosition.IsValid() {
				yield(models.PotentialHlaMatchRelation{}, fmt.Errorf("%w: donor %d locus %s has position pair (%d, %d)",
					sentinel.ErrInvalidState, donorID, locus, search, match))
				return
			}
			if !yield(rel, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.PotentialHlaMatchRelation{}, fmt.Errorf("iterate locus %s relations: %w", locus, err))
		}
	}
}

func (s *Store) relationsQuery(locus models.Locus, criteria models.LocusSearchCriteria, opts models.MatchingFilteringOptions) (string, []any) {
	var (
		branches []string
		args     []any
	)

	// restrict appends the donor type and donor id conditions for alias.
	restrict := func(alias string) (string, string) {
		var join string
		var conds []string
		if opts.DonorType != nil {
			join = " JOIN donors d ON d.donor_id = " + alias + ".donor_id AND d.donor_type = ?"
			args = append(args, string(*opts.DonorType))
		}
		// Join arguments precede WHERE arguments.
		conds = append(conds, alias+".locus = ?")
		args = append(args, int(locus))
		if opts.DonorIDs != nil {
			filter, filterArgs := s.intsFilter(alias+".donor_id", opts.DonorIDs)
			conds = append(conds, filter)
			args = append(args, filterArgs...)
		}
		return join, strings.Join(conds, " AND ")
	}

	for _, search := range models.Positions {
		ids := criteria.PGroupIDsAtPosition(search)
		if len(ids) == 0 {
			continue
		}
		join, where := restrict("dp")
		filter, filterArgs := s.intsFilter("dp.pgroup_id", ids)
		args = append(args, filterArgs...)
		branches = append(branches, fmt.Sprintf(
			"SELECT dp.donor_id AS donor_id, %d AS search_position, dp.type_position AS type_position FROM donor_pgroups dp%s WHERE %s AND %s",
			int(search), join, where, filter,
		))
	}

	join, where := restrict("u")
	branches = append(branches,
		"SELECT u.donor_id AS donor_id, p.pos AS search_position, p.pos AS type_position"+
			" FROM donor_untyped_loci u"+join+
			" CROSS JOIN (SELECT 1 AS pos UNION ALL SELECT 2) p"+
			" WHERE "+where,
	)

	return strings.Join(branches, " UNION ") + " ORDER BY donor_id", args
}

// GetDonors loads donors with their typing. Unknown ids are omitted.
func (s *Store) GetDonors(ctx context.Context, ids []int) (map[int]*models.Donor, error) {
	donors := make(map[int]*models.Donor, len(ids))
	if len(ids) == 0 {
		return donors, nil
	}

	filter, args := s.intsFilter("donor_id", ids)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT donor_id, external_code, donor_type, registry_code, is_available_for_search
		FROM donors WHERE `+filter), args...)
	if err != nil {
		return nil, fmt.Errorf("select donors: %w", unavailable(err))
	}
	for rows.Next() {
		var (
			d         models.Donor
			donorType string
		)
		if err := rows.Scan(&d.DonorID, &d.ExternalCode, &donorType, &d.RegistryCode, &d.IsAvailableForSearch); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		d.DonorType = models.DonorType(donorType)
		for _, l := range models.AllLoci {
			d.Hla[l] = &models.LocusTyping{PositionOne: []string{}, PositionTwo: []string{}}
		}
		donors[d.DonorID] = &d
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	if len(donors) == 0 {
		return donors, nil
	}

	if err := s.loadTyping(ctx, ids, donors); err != nil {
		return nil, err
	}
	return donors, nil
}

func (s *Store) loadTyping(ctx context.Context, ids []int, donors map[int]*models.Donor) error {
	filter, args := s.intsFilter("dp.donor_id", ids)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT dp.donor_id, dp.locus, dp.type_position, pg.name
		FROM donor_pgroups dp JOIN pgroups pg ON pg.id = dp.pgroup_id
		WHERE `+filter+`
		ORDER BY dp.donor_id, dp.locus, dp.type_position, pg.name`), args...)
	if err != nil {
		return fmt.Errorf("select donor pgroups: %w", err)
	}
	for rows.Next() {
		var (
			donorID, locus, position int
			name                     string
		)
		if err := rows.Scan(&donorID, &locus, &position, &name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan donor pgroup: %w", err)
		}
		d, ok := donors[donorID]
		l := models.Locus(locus)
		if !ok || !l.IsValid() {
			continue
		}
		typing := d.Hla[l]
		switch models.LocusPosition(position) {
		case models.PositionOne:
			typing.PositionOne = append(typing.PositionOne, name)
		case models.PositionTwo:
			typing.PositionTwo = append(typing.PositionTwo, name)
		default:
			_ = rows.Close()
			return fmt.Errorf("%w: donor %d locus %s has type position %d", sentinel.ErrInvalidState, donorID, l, position)
		}
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return fmt.Errorf("iterate donor pgroups: %w", err)
	}

	filter, args = s.intsFilter("donor_id", ids)
	rows, err = s.db.QueryContext(ctx, s.rebind(`SELECT donor_id, locus FROM donor_untyped_loci WHERE `+filter), args...)
	if err != nil {
		return fmt.Errorf("select untyped loci: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var donorID, locus int
		if err := rows.Scan(&donorID, &locus); err != nil {
			return fmt.Errorf("scan untyped locus: %w", err)
		}
		if d, ok := donors[donorID]; ok && models.Locus(locus).IsValid() {
			d.Hla[models.Locus(locus)] = nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate untyped loci: %w", err)
	}
	return nil
}

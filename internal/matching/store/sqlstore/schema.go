package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"donormatch/internal/matching/calculator"
	"donormatch/internal/matching/models"
)

var schema = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS pgroups (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS pgroups (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
	},
}

var sharedSchema = []string{
	`CREATE TABLE IF NOT EXISTS donors (
		donor_id INTEGER PRIMARY KEY,
		external_code TEXT NOT NULL DEFAULT '',
		donor_type TEXT NOT NULL,
		registry_code TEXT NOT NULL DEFAULT '',
		is_available_for_search BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS donor_pgroups (
		donor_id INTEGER NOT NULL REFERENCES donors (donor_id) ON DELETE CASCADE,
		locus SMALLINT NOT NULL,
		type_position SMALLINT NOT NULL,
		pgroup_id INTEGER NOT NULL REFERENCES pgroups (id),
		PRIMARY KEY (donor_id, locus, type_position, pgroup_id)
	)`,
	`CREATE INDEX IF NOT EXISTS donor_pgroups_locus_pgroup ON donor_pgroups (locus, pgroup_id, donor_id)`,
	`CREATE TABLE IF NOT EXISTS donor_untyped_loci (
		donor_id INTEGER NOT NULL REFERENCES donors (donor_id) ON DELETE CASCADE,
		locus SMALLINT NOT NULL,
		PRIMARY KEY (donor_id, locus)
	)`,
	`CREATE INDEX IF NOT EXISTS donor_untyped_loci_locus ON donor_untyped_loci (locus, donor_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range append(schema[s.dialect], sharedSchema...) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedDonors upserts donors and replaces their typing in one transaction.
// It exists for local runs and tests; the matching read paths never call it.
func (s *Store) SeedDonors(ctx context.Context, donors ...*models.Donor) (retErr error) {
	for _, d := range donors {
		for _, l := range models.AllLoci {
			if t := d.Hla[l]; t != nil && (t.PositionOne == nil) != (t.PositionTwo == nil) {
				return fmt.Errorf("donor %d locus %s: %w", d.DonorID, l, calculator.ErrPartialLocusTyping)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	pgroupIDs := make(map[string]int)
	for _, d := range donors {
		if err := s.seedDonor(ctx, tx, d, pgroupIDs); err != nil {
			return fmt.Errorf("seed donor %d: %w", d.DonorID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func (s *Store) seedDonor(ctx context.Context, tx *sql.Tx, d *models.Donor, pgroupIDs map[string]int) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO donors (donor_id, external_code, donor_type, registry_code, is_available_for_search)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (donor_id) DO UPDATE SET
			external_code = excluded.external_code,
			donor_type = excluded.donor_type,
			registry_code = excluded.registry_code,
			is_available_for_search = excluded.is_available_for_search
	`), d.DonorID, d.ExternalCode, string(d.DonorType), d.RegistryCode, d.IsAvailableForSearch)
	if err != nil {
		return fmt.Errorf("upsert donor: %w", err)
	}
	for _, table := range []string{"donor_pgroups", "donor_untyped_loci"} {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE donor_id = ?`), d.DonorID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, l := range models.AllLoci {
		typing := d.Hla[l]
		if typing == nil || typing.PositionOne == nil {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO donor_untyped_loci (donor_id, locus) VALUES (?, ?)`), d.DonorID, int(l)); err != nil {
				return fmt.Errorf("insert untyped locus: %w", err)
			}
			continue
		}
		for _, p := range models.Positions {
			for _, name := range typing.AtPosition(p) {
				id, err := s.internPGroup(ctx, tx, name, pgroupIDs)
				if err != nil {
					return err
				}
				_, err = tx.ExecContext(ctx, s.rebind(`
					INSERT INTO donor_pgroups (donor_id, locus, type_position, pgroup_id)
					VALUES (?, ?, ?, ?)
					ON CONFLICT DO NOTHING
				`), d.DonorID, int(l), int(p), id)
				if err != nil {
					return fmt.Errorf("insert donor pgroup: %w", err)
				}
			}
		}
	}
	return nil
}

func (s *Store) internPGroup(ctx context.Context, tx *sql.Tx, name string, cache map[string]int) (int, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO pgroups (name) VALUES (?) ON CONFLICT (name) DO NOTHING`), name); err != nil {
		return 0, fmt.Errorf("insert pgroup %q: %w", name, err)
	}
	var id int
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM pgroups WHERE name = ?`), name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select pgroup %q: %w", name, err)
	}
	cache[name] = id
	return id, nil
}

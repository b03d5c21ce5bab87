// Package sqlstore reads donors and their HLA typing from Postgres or SQLite
// through database/sql. Both dialects share one schema; only placeholders and
// list filters differ.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/lib/pq"                // registers "postgres"; also used for array binding
	_ "modernc.org/sqlite"             // registers "sqlite"

	"donormatch/internal/matching/ports"
	"donormatch/pkg/platform/sentinel"
)

var (
	_ ports.PGroupRepository     = (*Store)(nil)
	_ ports.LocusMatchRepository = (*Store)(nil)
	_ ports.DonorRepository      = (*Store)(nil)
)

// Dialect selects the SQL flavour.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

// Store implements the matching storage ports on a *sql.DB. Read paths never
// write or take locks. A relation stream holds a connection until it is
// drained, and the pipeline nests one stream per locus stage, so the pool
// must not be capped below the number of searched loci plus one.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open opens and pings a database with the named driver.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w: %w", dialect, sentinel.ErrUnavailable, err)
	}
	return New(db, dialect), nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

// unavailable marks connection-level failures with sentinel.ErrUnavailable
// so callers can tell an unreachable database from a bad query.
func unavailable(err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// intsFilter renders "column IN/ANY (ids)". Postgres binds one array
// parameter; SQLite inlines the integers, which keeps large donor batches
// clear of SQLite's bound-variable limit.
func (s *Store) intsFilter(column string, ids []int) (string, []any) {
	if s.dialect == DialectPostgres {
		values := make([]int64, len(ids))
		for i, id := range ids {
			values[i] = int64(id)
		}
		return column + " = ANY(CAST(? AS TEXT)::BIGINT[])", []any{pq.Array(values)}
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return column + " IN (" + strings.Join(parts, ",") + ")", nil
}

// stringsFilter renders "column IN/ANY (values)" with bound parameters.
func (s *Store) stringsFilter(column string, values []string) (string, []any) {
	if s.dialect == DialectPostgres {
		return column + " = ANY(CAST(? AS TEXT)::TEXT[])", []any{pq.Array(values)}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(values)), ",") + ")", args
}

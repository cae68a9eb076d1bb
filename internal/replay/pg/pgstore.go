// Package pg stores consumed token fingerprints in Postgres.
//
// Schema (single table, no migration manager needed):
//
//	create table if not exists consumed_tokens (
//	    fingerprint text primary key,
//	    consumed_at timestamptz not null default now()
//	);
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ccaccess.org/internal/replay"
)

type Store struct {
	db *sql.DB
}

var _ replay.Store = (*Store)(nil)

// Open connects to Postgres with pool settings sized for the approval
// service's low request volume.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool (used by tests).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Consume inserts the fingerprint; the conflict target makes the first
// writer win, so concurrent clicks on the same link resolve to a single
// true result.
func (s *Store) Consume(ctx context.Context, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into consumed_tokens(fingerprint, consumed_at)
		values ($1, now())
		on conflict (fingerprint) do nothing
	`, fingerprint)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Release deletes the fingerprint so the link can be retried after a
// resolution attempt that failed mid-flight.
func (s *Store) Release(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from consumed_tokens where fingerprint = $1
	`, fingerprint)
	return err
}

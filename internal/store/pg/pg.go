// Package pg is the durable store. One Store backs every domain interface so
// the whole service shares a single connection pool.
package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatehouse.io/internal/attachment"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/directory"
	"gatehouse.io/internal/policy"
	"gatehouse.io/internal/visit"
	"gatehouse.io/internal/visitor"
)

type Store struct {
	db          *sql.DB
	invalidator visit.ViewInvalidator
	now         func() time.Time
}

var (
	_ visit.Service    = (*Store)(nil)
	_ visitor.Registry = (*Store)(nil)
	_ directory.Store  = (*Store)(nil)
	_ policy.Store     = (*Store)(nil)
	_ attachment.Store = (*Store)(nil)
	_ auth.AdminStore  = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing pool; used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetViewInvalidator wires cache invalidation into every transition.
func (s *Store) SetViewInvalidator(v visit.ViewInvalidator) { s.invalidator = v }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

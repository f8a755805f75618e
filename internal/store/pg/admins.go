package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/ids"
)

const pgErrUniqueViolation = "23505"

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func (s *Store) CreateAdmin(ctx context.Context, a *auth.Admin) error {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	if email == "" {
		return auth.ErrInvalidInput
	}
	switch a.Role {
	case auth.RoleAdmin, auth.RoleSecurity, auth.RoleKiosk:
	default:
		return auth.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = email
	a.IsActive = true
	a.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		insert into admins(id, organization_id, email, password_hash, role, is_active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, a.OrganizationID, a.Email, a.PasswordHash, a.Role, a.IsActive, a.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.ErrAlreadyExists
	}
	return err
}

func (s *Store) FindAdmin(ctx context.Context, id string) (*auth.Admin, error) {
	return s.scanAdmin(s.db.QueryRowContext(ctx, `
		select id, organization_id, email, password_hash, role, is_active, created_at
		from admins where id=$1
	`, id))
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*auth.Admin, error) {
	return s.scanAdmin(s.db.QueryRowContext(ctx, `
		select id, organization_id, email, password_hash, role, is_active, created_at
		from admins where email=$1
	`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanAdmin(row *sql.Row) (*auth.Admin, error) {
	var a auth.Admin
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

package pg

import (
	"context"
	"database/sql"
	"errors"

	"gatehouse.io/internal/ids"
	"gatehouse.io/internal/visitor"
)

const visitorColumns = `id, organization_id, full_name, email, coalesce(phone,''), coalesce(company,''), coalesce(designation,''), created_at, updated_at`

func scanVisitor(r rowScanner) (visitor.Visitor, error) {
	var v visitor.Visitor
	err := r.Scan(&v.ID, &v.OrganizationID, &v.FullName, &v.Email, &v.Phone, &v.Company, &v.Designation, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// UpsertVisitor relies on the (organization_id, email) unique constraint so two
// concurrent registrations of the same person converge on one row.
func (s *Store) UpsertVisitor(ctx context.Context, p visitor.UpsertParams) (visitor.Visitor, error) {
	email := visitor.NormalizeEmail(p.Email)
	if p.OrganizationID == "" || p.FullName == "" || email == "" {
		return visitor.Visitor{}, visitor.ErrInvalidInput
	}

	now := s.now()
	row := s.db.QueryRowContext(ctx, `
		insert into visitors(id, organization_id, full_name, email, phone, company, designation, created_at, updated_at)
		values ($1,$2,$3,$4,nullif($5,''),nullif($6,''),nullif($7,''),$8,$8)
		on conflict (organization_id, email) do update
		set full_name=excluded.full_name,
		    phone=excluded.phone,
		    company=excluded.company,
		    designation=excluded.designation,
		    updated_at=excluded.updated_at
		returning `+visitorColumns+`
	`, ids.New(), p.OrganizationID, p.FullName, email, p.Phone, p.Company, p.Designation, now)
	return scanVisitor(row)
}

func (s *Store) GetVisitor(ctx context.Context, id string) (visitor.Visitor, error) {
	v, err := scanVisitor(s.db.QueryRowContext(ctx, `select `+visitorColumns+` from visitors where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return visitor.Visitor{}, visitor.ErrNotFound
	}
	return v, err
}

func (s *Store) FindVisitorByEmail(ctx context.Context, organizationID, email string) (visitor.Visitor, error) {
	v, err := scanVisitor(s.db.QueryRowContext(ctx, `
		select `+visitorColumns+` from visitors where organization_id=$1 and email=$2
	`, organizationID, visitor.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return visitor.Visitor{}, visitor.ErrNotFound
	}
	return v, err
}

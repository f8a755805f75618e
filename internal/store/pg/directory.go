package pg

import (
	"context"
	"database/sql"
	"errors"

	"gatehouse.io/internal/directory"
	"gatehouse.io/internal/ids"
)

const employeeColumns = `id, organization_id, branch_id, full_name, email, coalesce(phone,''), coalesce(designation,''), requires_host_approval, is_active, created_at, updated_at`

func scanEmployee(r rowScanner) (directory.Employee, error) {
	var e directory.Employee
	err := r.Scan(&e.ID, &e.OrganizationID, &e.BranchID, &e.FullName, &e.Email, &e.Phone, &e.Designation,
		&e.RequiresHostApproval, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) CreateEmployee(ctx context.Context, p directory.EmployeeParams) (directory.Employee, error) {
	if p.OrganizationID == "" || p.BranchID == "" || p.FullName == "" || p.Email == "" {
		return directory.Employee{}, directory.ErrInvalidInput
	}
	now := s.now()
	row := s.db.QueryRowContext(ctx, `
		insert into employees(id, organization_id, branch_id, full_name, email, phone, designation, requires_host_approval, is_active, created_at, updated_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),$8,true,$9,$9)
		returning `+employeeColumns+`
	`, ids.New(), p.OrganizationID, p.BranchID, p.FullName, p.Email, p.Phone, p.Designation, p.RequiresHostApproval, now)
	return scanEmployee(row)
}

func (s *Store) UpdateEmployee(ctx context.Context, id string, p directory.EmployeeParams) (directory.Employee, error) {
	if p.BranchID == "" || p.FullName == "" || p.Email == "" {
		return directory.Employee{}, directory.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		update employees
		set branch_id=$2, full_name=$3, email=$4, phone=nullif($5,''), designation=nullif($6,''),
		    requires_host_approval=$7, updated_at=$8
		where id=$1
		returning `+employeeColumns+`
	`, id, p.BranchID, p.FullName, p.Email, p.Phone, p.Designation, p.RequiresHostApproval, s.now())
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Employee{}, directory.ErrNotFound
	}
	return e, err
}

func (s *Store) DeactivateEmployee(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update employees set is_active=false, updated_at=$2 where id=$1`, id, s.now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (directory.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, `select `+employeeColumns+` from employees where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Employee{}, directory.ErrNotFound
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, organizationID, branchID string, activeOnly bool) ([]directory.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+employeeColumns+`
		from employees
		where organization_id=$1
		  and ($2='' or branch_id=$2)
		  and (not $3 or is_active)
		order by full_name asc
	`, organizationID, branchID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]directory.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateBranch(ctx context.Context, organizationID, name, address string) (directory.Branch, error) {
	if organizationID == "" || name == "" {
		return directory.Branch{}, directory.ErrInvalidInput
	}
	var b directory.Branch
	row := s.db.QueryRowContext(ctx, `
		insert into branches(id, organization_id, name, address, is_active, created_at)
		values ($1,$2,$3,nullif($4,''),true,$5)
		returning id, organization_id, name, coalesce(address,''), is_active, created_at
	`, ids.New(), organizationID, name, address, s.now())
	err := row.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt)
	return b, err
}

func (s *Store) DeactivateBranch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update branches set is_active=false where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (directory.Branch, error) {
	var b directory.Branch
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, coalesce(address,''), is_active, created_at
		from branches where id=$1
	`, id).Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Branch{}, directory.ErrNotFound
	}
	return b, err
}

func (s *Store) ListBranches(ctx context.Context, organizationID string, activeOnly bool) ([]directory.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, coalesce(address,''), is_active, created_at
		from branches
		where organization_id=$1 and (not $2 or is_active)
		order by name asc
	`, organizationID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]directory.Branch, 0)
	for rows.Next() {
		var b directory.Branch
		if err := rows.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

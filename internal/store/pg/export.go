package pg

import (
	"context"
	"database/sql"

	"gatehouse.io/internal/export"
)

// ExportRows streams every visit joined to its visitor, host and branch for
// the report projections. No pagination; acceptable for modest volumes.
func (s *Store) ExportRows(ctx context.Context, organizationID string) ([]export.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		select v.created_at, vis.full_name, vis.email, coalesce(vis.company,''),
		       coalesce(e.full_name,''), coalesce(b.name,''),
		       v.purpose, v.status, v.checkin_at, v.checkout_at
		from visits v
		join visitors vis on vis.id = v.visitor_id
		left join employees e on e.id = v.host_employee_id
		left join branches b on b.id = v.branch_id
		where v.organization_id=$1
		order by v.created_at desc
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]export.Row, 0)
	for rows.Next() {
		var r export.Row
		var checkin, checkout sql.NullTime
		if err := rows.Scan(&r.Date, &r.VisitorName, &r.VisitorEmail, &r.Company,
			&r.Host, &r.Branch, &r.Purpose, &r.Status, &checkin, &checkout); err != nil {
			return nil, err
		}
		if checkin.Valid {
			t := checkin.Time
			r.CheckinAt = &t
		}
		if checkout.Valid {
			t := checkout.Time
			r.CheckoutAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

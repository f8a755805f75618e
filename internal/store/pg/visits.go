package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/ids"
	"gatehouse.io/internal/visit"
)

const visitColumns = `id, organization_id, branch_id, visitor_id, host_employee_id, public_id,
	purpose, coalesce(purpose_other,''), validity_hours, scheduled_start_at,
	additional_visitor_count, coalesce(additional_visitor_names,''),
	status, coalesce(status_reason,''), requires_host_approval, email_verification_required,
	coalesce(verification_token,''), checkin_at, checkout_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(r rowScanner) (visit.Visit, error) {
	var v visit.Visit
	var status string
	var checkin, checkout sql.NullTime
	err := r.Scan(
		&v.ID, &v.OrganizationID, &v.BranchID, &v.VisitorID, &v.HostEmployeeID, &v.PublicID,
		&v.Purpose, &v.PurposeOther, &v.ValidityHours, &v.ScheduledStartAt,
		&v.AdditionalVisitorCount, &v.AdditionalVisitorNames,
		&status, &v.StatusReason, &v.RequiresHostApproval, &v.EmailVerificationRequired,
		&v.VerificationToken, &checkin, &checkout, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return visit.Visit{}, err
	}
	v.Status = visit.Status(status)
	if checkin.Valid {
		t := checkin.Time
		v.CheckinAt = &t
	}
	if checkout.Valid {
		t := checkout.Time
		v.CheckoutAt = &t
	}
	return v, nil
}

func (s *Store) Create(ctx context.Context, actor auth.Actor, p visit.CreateParams) (visit.Visit, error) {
	if err := visit.ValidateCreate(p); err != nil {
		return visit.Visit{}, err
	}

	now := s.now()
	v := visit.Visit{
		ID:                        ids.New(),
		OrganizationID:            p.OrganizationID,
		BranchID:                  p.BranchID,
		VisitorID:                 p.VisitorID,
		HostEmployeeID:            p.HostEmployeeID,
		PublicID:                  uuid.NewString(),
		Purpose:                   p.Purpose,
		PurposeOther:              p.PurposeOther,
		ValidityHours:             p.ValidityHours,
		ScheduledStartAt:          p.ScheduledStartAt,
		AdditionalVisitorCount:    p.AdditionalVisitorCount,
		AdditionalVisitorNames:    p.AdditionalVisitorNames,
		RequiresHostApproval:      p.Policy.RequiresApproval(),
		EmailVerificationRequired: p.Policy.EmailVerificationRequired,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if p.Draft {
		v.Status = visit.StatusIncompleteProfile
	} else {
		v.Status = visit.ResolveInitialStatus(p.Policy)
	}
	if v.Status == visit.StatusPendingVerification || (p.Draft && p.Policy.EmailVerificationRequired) {
		v.VerificationToken = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return visit.Visit{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into visits(
			id, organization_id, branch_id, visitor_id, host_employee_id, public_id,
			purpose, purpose_other, validity_hours, scheduled_start_at,
			additional_visitor_count, additional_visitor_names,
			status, requires_host_approval, email_verification_required,
			verification_token, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,nullif($8,''),$9,$10,$11,nullif($12,''),$13,$14,$15,nullif($16,''),$17,$18)
	`, v.ID, v.OrganizationID, v.BranchID, v.VisitorID, v.HostEmployeeID, v.PublicID,
		v.Purpose, v.PurposeOther, v.ValidityHours, v.ScheduledStartAt,
		v.AdditionalVisitorCount, v.AdditionalVisitorNames,
		string(v.Status), v.RequiresHostApproval, v.EmailVerificationRequired,
		v.VerificationToken, v.CreatedAt, v.UpdatedAt); err != nil {
		return visit.Visit{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into visit_status_history(id, visit_id, from_status, to_status, changed_by_type, changed_by_id, created_at)
		values ($1,$2,null,$3,$4,nullif($5,''),$6)
	`, ids.New(), v.ID, string(v.Status), string(actor.Type), actor.ID, now); err != nil {
		return visit.Visit{}, err
	}

	if err := tx.Commit(); err != nil {
		return visit.Visit{}, err
	}
	return v, nil
}

func (s *Store) Get(ctx context.Context, id string) (visit.Visit, error) {
	v, err := scanVisit(s.db.QueryRowContext(ctx, `select `+visitColumns+` from visits where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return visit.Visit{}, visit.ErrNotFound
	}
	return v, err
}

func (s *Store) GetByPublicID(ctx context.Context, publicID string) (visit.Visit, error) {
	v, err := scanVisit(s.db.QueryRowContext(ctx, `select `+visitColumns+` from visits where public_id=$1`, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return visit.Visit{}, visit.ErrNotFound
	}
	return v, err
}

func (s *Store) List(ctx context.Context, f visit.Filter) ([]visit.Visit, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.OrganizationID != "" {
		args = append(args, f.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if f.BranchID != "" {
		args = append(args, f.BranchID)
		where = append(where, fmt.Sprintf("branch_id=$%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			args = append(args, string(st))
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, "status in ("+strings.Join(ph, ",")+")")
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	q := `select ` + visitColumns + ` from visits where ` + strings.Join(where, " and ") +
		fmt.Sprintf(` order by created_at desc limit $%d`, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]visit.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, visitID string) ([]visit.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, visit_id, coalesce(from_status,''), to_status, changed_by_type, coalesce(changed_by_id,''), coalesce(note,''), created_at
		from visit_status_history
		where visit_id=$1
		order by created_at asc
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]visit.HistoryEntry, 0)
	for rows.Next() {
		var h visit.HistoryEntry
		var from, to, byType string
		if err := rows.Scan(&h.ID, &h.VisitID, &from, &to, &byType, &h.ChangedByID, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.FromStatus = visit.Status(from)
		h.ToStatus = visit.Status(to)
		h.ChangedByType = auth.ActorType(byType)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		// Distinguish an unknown visit from one with no history.
		var exists int
		err := s.db.QueryRowContext(ctx, `select 1 from visits where id=$1`, visitID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, visit.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Transition runs the guard check, the row update and the history append in
// one transaction holding a row lock, so concurrent callers serialize and the
// second one fails its guard instead of overwriting.
func (s *Store) Transition(ctx context.Context, actor auth.Actor, visitID string, event visit.Event, reason string) (visit.Visit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return visit.Visit{}, err
	}
	defer func() { _ = tx.Rollback() }()

	v, err := scanVisit(tx.QueryRowContext(ctx, `select `+visitColumns+` from visits where id=$1 for update`, visitID))
	if errors.Is(err, sql.ErrNoRows) {
		return visit.Visit{}, visit.ErrNotFound
	}
	if err != nil {
		return visit.Visit{}, err
	}

	from := v.Status
	if err := visit.Apply(&v, event, actor, reason); err != nil {
		return visit.Visit{}, err
	}

	now := s.now()
	switch event {
	case visit.EventCheckIn:
		v.CheckinAt = &now
	case visit.EventCheckOut:
		v.CheckoutAt = &now
	case visit.EventVerify:
		v.VerificationToken = ""
	}
	v.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		update visits
		set status=$2, status_reason=nullif($3,''), checkin_at=$4, checkout_at=$5,
		    verification_token=nullif($6,''), updated_at=$7
		where id=$1
	`, v.ID, string(v.Status), v.StatusReason, v.CheckinAt, v.CheckoutAt, v.VerificationToken, v.UpdatedAt); err != nil {
		return visit.Visit{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into visit_status_history(id, visit_id, from_status, to_status, changed_by_type, changed_by_id, note, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),$8)
	`, ids.New(), v.ID, string(from), string(v.Status), string(actor.Type), actor.ID, reason, now); err != nil {
		return visit.Visit{}, err
	}

	if err := tx.Commit(); err != nil {
		return visit.Visit{}, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, v.PublicID)
	}
	return v, nil
}

func (s *Store) Verify(ctx context.Context, token string) (visit.Visit, error) {
	if token == "" {
		return visit.Visit{}, fmt.Errorf("%w: token required", visit.ErrInvalidInput)
	}
	var id string
	err := s.db.QueryRowContext(ctx, `select id from visits where verification_token=$1`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return visit.Visit{}, visit.ErrNotFound
	}
	if err != nil {
		return visit.Visit{}, err
	}
	return s.Transition(ctx, auth.System, id, visit.EventVerify, "")
}

func (s *Store) ListOverdue(ctx context.Context, organizationID string, before time.Time) ([]visit.Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+visitColumns+`
		from visits
		where organization_id=$1
		  and status in ('INCOMPLETE_PROFILE','PENDING_VERIFICATION')
		  and created_at < $2
		order by created_at asc
	`, organizationID, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []visit.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

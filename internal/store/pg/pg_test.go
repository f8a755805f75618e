package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/visit"
	"gatehouse.io/internal/visitor"
)

var testAdmin = auth.Actor{Type: auth.ActorAdmin, ID: "adm1", OrganizationID: "org1"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

var visitCols = []string{
	"id", "organization_id", "branch_id", "visitor_id", "host_employee_id", "public_id",
	"purpose", "purpose_other", "validity_hours", "scheduled_start_at",
	"additional_visitor_count", "additional_visitor_names",
	"status", "status_reason", "requires_host_approval", "email_verification_required",
	"verification_token", "checkin_at", "checkout_at", "created_at", "updated_at",
}

func visitRow(status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(visitCols).AddRow(
		"v1", "org1", "br1", "vis1", "emp1", "pub-1",
		"MEETING", "", 8, now,
		0, "",
		status, "", false, false,
		"", nil, nil, now, now,
	)
}

func TestTransitionLocksRowAndAppendsHistory(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from visits where id=\\$1 for update").
		WithArgs("v1").
		WillReturnRows(visitRow("PENDING_APPROVAL"))
	mock.ExpectExec("update visits").
		WithArgs("v1", "APPROVED", "", nil, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into visit_status_history").
		WithArgs(sqlmock.AnyArg(), "v1", "PENDING_APPROVAL", "APPROVED", "ADMIN", "adm1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := s.Transition(context.Background(), testAdmin, "v1", visit.EventApprove, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != visit.StatusApproved {
		t.Fatalf("got %s, want APPROVED", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionGuardRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from visits where id=\\$1 for update").
		WithArgs("v1").
		WillReturnRows(visitRow("APPROVED"))
	mock.ExpectRollback()

	_, err := s.Transition(context.Background(), testAdmin, "v1", visit.EventCheckOut, "")
	if !errors.Is(err, visit.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionForbiddenActorSkipsWrites(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from visits where id=\\$1 for update").
		WithArgs("v1").
		WillReturnRows(visitRow("PENDING_APPROVAL"))
	mock.ExpectRollback()

	sec := auth.Actor{Type: auth.ActorSecurity, ID: "sec1"}
	_, err := s.Transition(context.Background(), sec, "v1", visit.EventApprove, "")
	if !errors.Is(err, visit.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateVisitWritesInitialHistory(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into visits").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into visit_status_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := s.Create(context.Background(), auth.Anonymous, visit.CreateParams{
		OrganizationID:   "org1",
		BranchID:         "br1",
		VisitorID:        "vis1",
		HostEmployeeID:   "emp1",
		Purpose:          "MEETING",
		ValidityHours:    8,
		ScheduledStartAt: time.Now().UTC(),
		Policy:           visit.PolicyInputs{OrgApprovalRequired: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != visit.StatusPendingApproval {
		t.Fatalf("got %s, want PENDING_APPROVAL", v.Status)
	}
	if v.PublicID == "" {
		t.Fatal("public id not assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetVisitNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("from visits where id=\\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(visitCols))

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, visit.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpsertVisitorReusesRow(t *testing.T) {
	s, mock := newMock(t)

	cols := []string{"id", "organization_id", "full_name", "email", "phone", "company", "designation", "created_at", "updated_at"}
	now := time.Now().UTC()
	mock.ExpectQuery("insert into visitors").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("vis1", "org1", "Jane A. Doe", "jane@x.com", "", "Acme Corp", "", now, now))

	got, err := s.UpsertVisitor(context.Background(), visitor.UpsertParams{
		OrganizationID: "org1",
		FullName:       "Jane A. Doe",
		Email:          "JANE@x.com ",
		Company:        "Acme Corp",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "vis1" || got.Company != "Acme Corp" {
		t.Fatalf("unexpected visitor: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

package directory

import (
	"context"
	"errors"
	"testing"
)

func TestEmployeeSoftDelete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	b, err := s.CreateBranch(ctx, "org1", "HQ", "1 Main St")
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.CreateEmployee(ctx, EmployeeParams{
		OrganizationID: "org1",
		BranchID:       b.ID,
		FullName:       "Askar B.",
		Email:          "askar@org1.kz",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsActive {
		t.Fatal("new employee not active")
	}

	if err := s.DeactivateEmployee(ctx, e.ID); err != nil {
		t.Fatal(err)
	}

	// Row survives deactivation; only listings filter it out.
	got, err := s.GetEmployee(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Fatal("employee still active after deactivation")
	}

	active, _ := s.ListEmployees(ctx, "org1", "", true)
	if len(active) != 0 {
		t.Fatalf("deactivated employee in active listing: %+v", active)
	}
	all, _ := s.ListEmployees(ctx, "org1", "", false)
	if len(all) != 1 {
		t.Fatalf("employee hard-deleted: %+v", all)
	}
}

func TestListEmployeesByBranch(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	b1, _ := s.CreateBranch(ctx, "org1", "HQ", "")
	b2, _ := s.CreateBranch(ctx, "org1", "North", "")
	s.CreateEmployee(ctx, EmployeeParams{OrganizationID: "org1", BranchID: b1.ID, FullName: "A", Email: "a@x"})
	s.CreateEmployee(ctx, EmployeeParams{OrganizationID: "org1", BranchID: b2.ID, FullName: "B", Email: "b@x"})

	got, _ := s.ListEmployees(ctx, "org1", b2.ID, true)
	if len(got) != 1 || got[0].FullName != "B" {
		t.Fatalf("branch filter broken: %+v", got)
	}
}

func TestUpdateEmployeeNotFound(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.UpdateEmployee(context.Background(), "missing", EmployeeParams{
		OrganizationID: "org1", BranchID: "b", FullName: "X", Email: "x@x",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

package visitor

import (
	"context"
	"errors"
	"testing"
)

func TestUpsertIdempotence(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	first, err := r.UpsertVisitor(ctx, UpsertParams{
		OrganizationID: "org1",
		FullName:       "Jane Doe",
		Email:          "jane@x.com",
		Company:        "Acme",
	})
	if err != nil {
		t.Fatal(err)
	}

	second, err := r.UpsertVisitor(ctx, UpsertParams{
		OrganizationID: "org1",
		FullName:       "Jane A. Doe",
		Email:          "JANE@x.com ",
		Company:        "Acme Corp",
		Phone:          "+7700100",
	})
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatalf("duplicate visitor rows: %s != %s", first.ID, second.ID)
	}
	if second.FullName != "Jane A. Doe" || second.Company != "Acme Corp" || second.Phone != "+7700100" {
		t.Fatalf("second registration did not overwrite attributes: %+v", second)
	}

	got, err := r.FindVisitorByEmail(ctx, "org1", "jane@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Fatalf("lookup returned wrong row: %+v", got)
	}
}

func TestUpsertScopedByOrganization(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	a, _ := r.UpsertVisitor(ctx, UpsertParams{OrganizationID: "org1", FullName: "Jane", Email: "jane@x.com"})
	b, _ := r.UpsertVisitor(ctx, UpsertParams{OrganizationID: "org2", FullName: "Jane", Email: "jane@x.com"})
	if a.ID == b.ID {
		t.Fatal("same visitor row shared across organizations")
	}
}

func TestUpsertValidation(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	cases := []UpsertParams{
		{FullName: "Jane", Email: "jane@x.com"},                          // no org
		{OrganizationID: "org1", Email: "jane@x.com"},                    // no name
		{OrganizationID: "org1", FullName: "Jane"},                       // no email
		{OrganizationID: "org1", FullName: "Jane", Email: "not-an-email"},
	}
	for i, p := range cases {
		if _, err := r.UpsertVisitor(ctx, p); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

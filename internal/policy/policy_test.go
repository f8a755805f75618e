package policy

import (
	"context"
	"errors"
	"testing"
)

func TestResolveFieldsDefaults(t *testing.T) {
	got := ResolveFields(nil)
	if len(got) != len(DefaultFieldKeys) {
		t.Fatalf("got %d fields, want %d", len(got), len(DefaultFieldKeys))
	}
	for _, f := range got {
		if !f.Visible || f.Required {
			t.Fatalf("default not visible-and-optional: %+v", f)
		}
	}
}

func TestHiddenDominatesRequired(t *testing.T) {
	rows := []FieldConfig{
		{FieldKey: FieldVisitorCompany, IsVisible: false, IsRequired: true},
		{FieldKey: FieldVisitorPhone, IsVisible: true, IsRequired: true},
	}
	for _, f := range ResolveFields(rows) {
		switch f.Key {
		case FieldVisitorCompany:
			if f.Visible || f.Required {
				t.Fatalf("hidden field still rendered or required: %+v", f)
			}
		case FieldVisitorPhone:
			if !f.Visible || !f.Required {
				t.Fatalf("visible+required field lost flags: %+v", f)
			}
		}
	}
}

func TestPutConfigValidatesRecipient(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.PutConfig(ctx, Config{OrganizationID: "org1", ApprovalRecipient: "NOBODY"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}

	c, err := s.PutConfig(ctx, Config{
		OrganizationID:              "org1",
		ApprovalRequired:            true,
		ApprovalRecipient:           RecipientBoth,
		AutoCancelIncompleteAfterHr: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !c.ApprovalRequired || c.ApprovalRecipient != RecipientBoth {
		t.Fatalf("config not persisted: %+v", c)
	}
}

func TestGetConfigDefaultsWhenUnset(t *testing.T) {
	s := NewInMemoryStore()
	c, err := s.GetConfig(context.Background(), "org-without-config")
	if err != nil {
		t.Fatal(err)
	}
	if c.ApprovalRequired || c.EmailVerificationRequired || c.ApprovalRecipient != RecipientHost {
		t.Fatalf("unexpected default config: %+v", c)
	}
}

func TestUpsertFieldConfigRejectsUnknownKey(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.UpsertFieldConfig(ctx, "org1", "visitor.shoe_size", true, false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}

	first, err := s.UpsertFieldConfig(ctx, "org1", FieldVisitorCompany, false, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.UpsertFieldConfig(ctx, "org1", FieldVisitorCompany, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatal("field config row duplicated on upsert")
	}
	rows, _ := s.ListFieldConfigs(ctx, "org1")
	if len(rows) != 1 || !rows[0].IsVisible || rows[0].IsRequired {
		t.Fatalf("upsert did not replace flags: %+v", rows)
	}
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatehouse.io/internal/ids"
	"gatehouse.io/internal/policy"
)

const configColumns = `organization_id, approval_required, email_verification_required, allow_manual_walkin, approval_recipient, auto_cancel_incomplete_after_hours, updated_at`

func scanConfig(r rowScanner) (policy.Config, error) {
	var c policy.Config
	var recipient string
	err := r.Scan(&c.OrganizationID, &c.ApprovalRequired, &c.EmailVerificationRequired,
		&c.AllowManualWalkin, &recipient, &c.AutoCancelIncompleteAfterHr, &c.UpdatedAt)
	c.ApprovalRecipient = policy.Recipient(recipient)
	return c, err
}

func (s *Store) GetConfig(ctx context.Context, organizationID string) (policy.Config, error) {
	if organizationID == "" {
		return policy.Config{}, fmt.Errorf("%w: organization_id required", policy.ErrInvalidInput)
	}
	c, err := scanConfig(s.db.QueryRowContext(ctx, `
		select `+configColumns+` from organization_config where organization_id=$1
	`, organizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return policy.DefaultConfig(organizationID), nil
	}
	return c, err
}

func (s *Store) PutConfig(ctx context.Context, c policy.Config) (policy.Config, error) {
	if c.OrganizationID == "" {
		return policy.Config{}, fmt.Errorf("%w: organization_id required", policy.ErrInvalidInput)
	}
	switch c.ApprovalRecipient {
	case policy.RecipientHost, policy.RecipientSecurityEmail, policy.RecipientBoth:
	default:
		return policy.Config{}, fmt.Errorf("%w: approval_recipient must be HOST, SECURITY_EMAIL or BOTH", policy.ErrInvalidInput)
	}
	if c.AutoCancelIncompleteAfterHr < 0 {
		return policy.Config{}, fmt.Errorf("%w: auto_cancel_incomplete_after_hours must not be negative", policy.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organization_config(`+configColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (organization_id) do update
		set approval_required=excluded.approval_required,
		    email_verification_required=excluded.email_verification_required,
		    allow_manual_walkin=excluded.allow_manual_walkin,
		    approval_recipient=excluded.approval_recipient,
		    auto_cancel_incomplete_after_hours=excluded.auto_cancel_incomplete_after_hours,
		    updated_at=excluded.updated_at
		returning `+configColumns+`
	`, c.OrganizationID, c.ApprovalRequired, c.EmailVerificationRequired, c.AllowManualWalkin,
		string(c.ApprovalRecipient), c.AutoCancelIncompleteAfterHr, s.now())
	return scanConfig(row)
}

func (s *Store) ListConfigs(ctx context.Context) ([]policy.Config, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+configColumns+` from organization_config order by organization_id asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]policy.Config, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertFieldConfig(ctx context.Context, organizationID, fieldKey string, visible, required bool) (policy.FieldConfig, error) {
	if organizationID == "" {
		return policy.FieldConfig{}, fmt.Errorf("%w: organization_id required", policy.ErrInvalidInput)
	}
	known := false
	for _, k := range policy.DefaultFieldKeys {
		if k == fieldKey {
			known = true
			break
		}
	}
	if !known {
		return policy.FieldConfig{}, fmt.Errorf("%w: unknown field key %q", policy.ErrInvalidInput, fieldKey)
	}

	var f policy.FieldConfig
	err := s.db.QueryRowContext(ctx, `
		insert into field_config(id, organization_id, field_key, is_visible, is_required, updated_at)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (organization_id, field_key) do update
		set is_visible=excluded.is_visible,
		    is_required=excluded.is_required,
		    updated_at=excluded.updated_at
		returning id, organization_id, field_key, is_visible, is_required, updated_at
	`, ids.New(), organizationID, fieldKey, visible, required, s.now()).
		Scan(&f.ID, &f.OrganizationID, &f.FieldKey, &f.IsVisible, &f.IsRequired, &f.UpdatedAt)
	return f, err
}

func (s *Store) ListFieldConfigs(ctx context.Context, organizationID string) ([]policy.FieldConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, field_key, is_visible, is_required, updated_at
		from field_config
		where organization_id=$1
		order by field_key asc
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]policy.FieldConfig, 0)
	for rows.Next() {
		var f policy.FieldConfig
		if err := rows.Scan(&f.ID, &f.OrganizationID, &f.FieldKey, &f.IsVisible, &f.IsRequired, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

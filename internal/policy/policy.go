package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gatehouse.io/internal/ids"
)

var (
	ErrNotFound     = errors.New("policy: not found")
	ErrInvalidInput = errors.New("policy: invalid input")
)

// Recipient routes approval notifications.
type Recipient string

const (
	RecipientHost          Recipient = "HOST"
	RecipientSecurityEmail Recipient = "SECURITY_EMAIL"
	RecipientBoth          Recipient = "BOTH"
)

func validRecipient(r Recipient) bool {
	switch r {
	case RecipientHost, RecipientSecurityEmail, RecipientBoth:
		return true
	}
	return false
}

// Config is the singleton per-organization policy row.
type Config struct {
	OrganizationID              string    `json:"organization_id"`
	ApprovalRequired            bool      `json:"approval_required"`
	EmailVerificationRequired   bool      `json:"email_verification_required"`
	AllowManualWalkin           bool      `json:"allow_manual_walkin"`
	ApprovalRecipient           Recipient `json:"approval_recipient"`
	AutoCancelIncompleteAfterHr int       `json:"auto_cancel_incomplete_after_hours"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

// FieldConfig governs one configurable kiosk form field. Absence of a row
// means visible and optional.
type FieldConfig struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FieldKey       string    `json:"field_key"`
	IsVisible      bool      `json:"is_visible"`
	IsRequired     bool      `json:"is_required"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Configurable field keys. Anything else is rejected on upsert.
const (
	FieldVisitorCompany     = "visitor.company"
	FieldVisitorDesignation = "visitor.designation"
	FieldVisitorPhone       = "visitor.phone"
	FieldVisitorPhoto       = "visitor.photo"
	FieldVisitPurposeOther  = "visit.purpose_other"
)

// DefaultFieldKeys lists every configurable key in kiosk form order.
var DefaultFieldKeys = []string{
	FieldVisitorCompany,
	FieldVisitorDesignation,
	FieldVisitorPhone,
	FieldVisitorPhoto,
	FieldVisitPurposeOther,
}

func validFieldKey(key string) bool {
	for _, k := range DefaultFieldKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ResolvedField is the effective rendering/validation rule for one field.
// A hidden field is never required: visibility dominates.
type ResolvedField struct {
	Key      string `json:"key"`
	Visible  bool   `json:"visible"`
	Required bool   `json:"required"`
}

// ResolveFields merges the stored rows over the defaults for every known key.
func ResolveFields(rows []FieldConfig) []ResolvedField {
	byKey := make(map[string]FieldConfig, len(rows))
	for _, r := range rows {
		byKey[r.FieldKey] = r
	}
	out := make([]ResolvedField, 0, len(DefaultFieldKeys))
	for _, key := range DefaultFieldKeys {
		f := ResolvedField{Key: key, Visible: true}
		if r, ok := byKey[key]; ok {
			f.Visible = r.IsVisible
			f.Required = r.IsVisible && r.IsRequired
		}
		out = append(out, f)
	}
	return out
}

// Store holds per-organization policy and field configuration.
type Store interface {
	GetConfig(ctx context.Context, organizationID string) (Config, error)
	// PutConfig creates or replaces the organization's singleton config row.
	PutConfig(ctx context.Context, c Config) (Config, error)
	// ListConfigs returns every organization's config, for the sweeper.
	ListConfigs(ctx context.Context) ([]Config, error)

	UpsertFieldConfig(ctx context.Context, organizationID, fieldKey string, visible, required bool) (FieldConfig, error)
	ListFieldConfigs(ctx context.Context, organizationID string) ([]FieldConfig, error)
}

// InMemoryStore implements Store behind a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*Config
	fields  map[string]map[string]*FieldConfig // orgID -> fieldKey -> row
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		configs: make(map[string]*Config),
		fields:  make(map[string]map[string]*FieldConfig),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DefaultConfig is what GetConfig returns for an organization that has never
// saved policy: open registration, host-routed, no auto-cancel.
func DefaultConfig(organizationID string) Config {
	return Config{
		OrganizationID:    organizationID,
		ApprovalRecipient: RecipientHost,
	}
}

func (s *InMemoryStore) GetConfig(ctx context.Context, organizationID string) (Config, error) {
	if organizationID == "" {
		return Config{}, fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[organizationID]
	if !ok {
		return DefaultConfig(organizationID), nil
	}
	return *c, nil
}

func (s *InMemoryStore) PutConfig(ctx context.Context, c Config) (Config, error) {
	if c.OrganizationID == "" {
		return Config{}, fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	}
	if !validRecipient(c.ApprovalRecipient) {
		return Config{}, fmt.Errorf("%w: approval_recipient must be HOST, SECURITY_EMAIL or BOTH", ErrInvalidInput)
	}
	if c.AutoCancelIncompleteAfterHr < 0 {
		return Config{}, fmt.Errorf("%w: auto_cancel_incomplete_after_hours must not be negative", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = s.now()
	s.configs[c.OrganizationID] = &c
	return c, nil
}

func (s *InMemoryStore) ListConfigs(ctx context.Context) ([]Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

func (s *InMemoryStore) UpsertFieldConfig(ctx context.Context, organizationID, fieldKey string, visible, required bool) (FieldConfig, error) {
	if organizationID == "" {
		return FieldConfig{}, fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	}
	if !validFieldKey(fieldKey) {
		return FieldConfig{}, fmt.Errorf("%w: unknown field key %q", ErrInvalidInput, fieldKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.fields[organizationID]
	if !ok {
		org = make(map[string]*FieldConfig)
		s.fields[organizationID] = org
	}
	now := s.now()
	if f, ok := org[fieldKey]; ok {
		f.IsVisible = visible
		f.IsRequired = required
		f.UpdatedAt = now
		return *f, nil
	}
	f := &FieldConfig{
		ID:             ids.New(),
		OrganizationID: organizationID,
		FieldKey:       fieldKey,
		IsVisible:      visible,
		IsRequired:     required,
		UpdatedAt:      now,
	}
	org[fieldKey] = f
	return *f, nil
}

func (s *InMemoryStore) ListFieldConfigs(ctx context.Context, organizationID string) ([]FieldConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FieldConfig, 0)
	for _, f := range s.fields[organizationID] {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldKey < out[j].FieldKey })
	return out, nil
}

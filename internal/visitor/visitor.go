package visitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gatehouse.io/internal/ids"
)

var (
	ErrNotFound     = errors.New("visitor: not found")
	ErrInvalidInput = errors.New("visitor: invalid input")
)

// Visitor is an identity record, deduplicated by email within an
// organization.
type Visitor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Company        string    `json:"company,omitempty"`
	Designation    string    `json:"designation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpsertParams carries the mutable attributes applied on every registration.
type UpsertParams struct {
	OrganizationID string
	FullName       string
	Email          string
	Phone          string
	Company        string
	Designation    string
}

// Registry stores visitor identities. Upsert runs before visit creation so
// the visit always references a valid visitor id.
type Registry interface {
	// UpsertVisitor inserts a visitor, or updates the existing row matching
	// (organization, email) and reuses its id.
	UpsertVisitor(ctx context.Context, p UpsertParams) (Visitor, error)
	GetVisitor(ctx context.Context, id string) (Visitor, error)
	FindVisitorByEmail(ctx context.Context, organizationID, email string) (Visitor, error)
}

// NormalizeEmail is the canonical form used for the (organization, email)
// uniqueness key everywhere, including the database constraint.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(p UpsertParams) error {
	if p.OrganizationID == "" {
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	}
	if p.FullName == "" {
		return fmt.Errorf("%w: full_name required", ErrInvalidInput)
	}
	email := NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email required", ErrInvalidInput)
	}
	return nil
}

// InMemoryRegistry implements Registry behind a mutex.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	byID    map[string]*Visitor
	byEmail map[string]string // orgID + "\x00" + email -> id
	now     func() time.Time
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		byID:    make(map[string]*Visitor),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func emailKey(orgID, email string) string {
	return orgID + "\x00" + NormalizeEmail(email)
}

func (r *InMemoryRegistry) UpsertVisitor(ctx context.Context, p UpsertParams) (Visitor, error) {
	if err := validate(p); err != nil {
		return Visitor{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if id, ok := r.byEmail[emailKey(p.OrganizationID, p.Email)]; ok {
		v := r.byID[id]
		v.FullName = p.FullName
		v.Phone = p.Phone
		v.Company = p.Company
		v.Designation = p.Designation
		v.UpdatedAt = now
		return *v, nil
	}

	v := &Visitor{
		ID:             ids.New(),
		OrganizationID: p.OrganizationID,
		FullName:       p.FullName,
		Email:          NormalizeEmail(p.Email),
		Phone:          p.Phone,
		Company:        p.Company,
		Designation:    p.Designation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byID[v.ID] = v
	r.byEmail[emailKey(v.OrganizationID, v.Email)] = v.ID
	return *v, nil
}

func (r *InMemoryRegistry) GetVisitor(ctx context.Context, id string) (Visitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byID[id]
	if !ok {
		return Visitor{}, ErrNotFound
	}
	return *v, nil
}

func (r *InMemoryRegistry) FindVisitorByEmail(ctx context.Context, organizationID, email string) (Visitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(organizationID, email)]
	if !ok {
		return Visitor{}, ErrNotFound
	}
	return *r.byID[id], nil
}

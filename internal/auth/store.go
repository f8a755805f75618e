package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gatehouse.io/internal/ids"
)

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")
)

// Admin maps an authenticated identity to an organization and a role.
type Admin struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// AdminStore manages admin identities.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a *Admin) error
	FindAdmin(ctx context.Context, id string) (*Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (*Admin, error)
}

// InMemoryAdmins implements AdminStore for tests and single-node development.
type InMemoryAdmins struct {
	mu      sync.RWMutex
	byID    map[string]*Admin
	byEmail map[string]string
}

var _ AdminStore = (*InMemoryAdmins)(nil)

func NewInMemoryAdmins() *InMemoryAdmins {
	return &InMemoryAdmins{
		byID:    make(map[string]*Admin),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryAdmins) CreateAdmin(ctx context.Context, a *Admin) error {
	email := normalizeEmail(a.Email)
	if email == "" {
		return ErrInvalidInput
	}
	switch a.Role {
	case RoleAdmin, RoleSecurity, RoleKiosk:
	default:
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = email
	a.IsActive = true
	a.CreatedAt = time.Now().UTC()
	cp := *a
	s.byID[a.ID] = &cp
	s.byEmail[email] = a.ID
	return nil
}

func (s *InMemoryAdmins) FindAdmin(ctx context.Context, id string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryAdmins) FindAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	a := s.byID[id]
	cp := *a
	return &cp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

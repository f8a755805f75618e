package directory

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
	ErrNotFound     = errors.New("directory: not found")
	ErrInvalidInput = errors.New("directory: invalid input")
)

// Employee is a host who can be visited. Deactivation is a soft delete:
// visits referencing a deactivated host stay valid.
type Employee struct {
	ID                   string    `json:"id"`
	OrganizationID       string    `json:"organization_id"`
	BranchID             string    `json:"branch_id"`
	FullName             string    `json:"full_name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone,omitempty"`
	Designation          string    `json:"designation,omitempty"`
	RequiresHostApproval bool      `json:"requires_host_approval"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Branch scopes visits and directories to a physical site.
type Branch struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmployeeParams carries employee attributes for create and update.
type EmployeeParams struct {
	OrganizationID       string
	BranchID             string
	FullName             string
	Email                string
	Phone                string
	Designation          string
	RequiresHostApproval bool
}

// Store is the host/branch directory.
type Store interface {
	CreateEmployee(ctx context.Context, p EmployeeParams) (Employee, error)
	UpdateEmployee(ctx context.Context, id string, p EmployeeParams) (Employee, error)
	// DeactivateEmployee soft-deletes: the row survives, IsActive drops.
	DeactivateEmployee(ctx context.Context, id string) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context, organizationID, branchID string, activeOnly bool) ([]Employee, error)

	CreateBranch(ctx context.Context, organizationID, name, address string) (Branch, error)
	DeactivateBranch(ctx context.Context, id string) error
	GetBranch(ctx context.Context, id string) (Branch, error)
	ListBranches(ctx context.Context, organizationID string, activeOnly bool) ([]Branch, error)
}

func validateEmployee(p EmployeeParams) error {
	switch {
	case p.OrganizationID == "":
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	case p.BranchID == "":
		return fmt.Errorf("%w: branch_id required", ErrInvalidInput)
	case p.FullName == "":
		return fmt.Errorf("%w: full_name required", ErrInvalidInput)
	case p.Email == "":
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	return nil
}

// InMemoryStore implements Store behind a mutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	employees map[string]*Employee
	branches  map[string]*Branch
	now       func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		employees: make(map[string]*Employee),
		branches:  make(map[string]*Branch),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) CreateEmployee(ctx context.Context, p EmployeeParams) (Employee, error) {
	if err := validateEmployee(p); err != nil {
		return Employee{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &Employee{
		ID:                   ids.New(),
		OrganizationID:       p.OrganizationID,
		BranchID:             p.BranchID,
		FullName:             p.FullName,
		Email:                p.Email,
		Phone:                p.Phone,
		Designation:          p.Designation,
		RequiresHostApproval: p.RequiresHostApproval,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.employees[e.ID] = e
	return *e, nil
}

func (s *InMemoryStore) UpdateEmployee(ctx context.Context, id string, p EmployeeParams) (Employee, error) {
	if err := validateEmployee(p); err != nil {
		return Employee{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	e.BranchID = p.BranchID
	e.FullName = p.FullName
	e.Email = p.Email
	e.Phone = p.Phone
	e.Designation = p.Designation
	e.RequiresHostApproval = p.RequiresHostApproval
	e.UpdatedAt = s.now()
	return *e, nil
}

func (s *InMemoryStore) DeactivateEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return ErrNotFound
	}
	e.IsActive = false
	e.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryStore) GetEmployee(ctx context.Context, id string) (Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return *e, nil
}

func (s *InMemoryStore) ListEmployees(ctx context.Context, organizationID, branchID string, activeOnly bool) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Employee, 0)
	for _, e := range s.employees {
		if e.OrganizationID != organizationID {
			continue
		}
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *InMemoryStore) CreateBranch(ctx context.Context, organizationID, name, address string) (Branch, error) {
	if organizationID == "" || name == "" {
		return Branch{}, fmt.Errorf("%w: organization_id and name required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &Branch{
		ID:             ids.New(),
		OrganizationID: organizationID,
		Name:           name,
		Address:        address,
		IsActive:       true,
		CreatedAt:      s.now(),
	}
	s.branches[b.ID] = b
	return *b, nil
}

func (s *InMemoryStore) DeactivateBranch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return ErrNotFound
	}
	b.IsActive = false
	return nil
}

func (s *InMemoryStore) GetBranch(ctx context.Context, id string) (Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return Branch{}, ErrNotFound
	}
	return *b, nil
}

func (s *InMemoryStore) ListBranches(ctx context.Context, organizationID string, activeOnly bool) ([]Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Branch, 0)
	for _, b := range s.branches {
		if b.OrganizationID != organizationID {
			continue
		}
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

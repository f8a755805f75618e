package visit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/ids"
)

// Service defines visit lifecycle operations. Every mutation takes the acting
// identity explicitly; no operation consults ambient state.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, p CreateParams) (Visit, error)
	Get(ctx context.Context, id string) (Visit, error)
	GetByPublicID(ctx context.Context, publicID string) (Visit, error)
	List(ctx context.Context, f Filter) ([]Visit, error)
	History(ctx context.Context, visitID string) ([]HistoryEntry, error)
	Transition(ctx context.Context, actor auth.Actor, visitID string, event Event, reason string) (Visit, error)
	Verify(ctx context.Context, token string) (Visit, error)
	ListOverdue(ctx context.Context, organizationID string, before time.Time) ([]Visit, error)
}

// InMemory implements Service with in-process concurrency safety. The mutex
// serializes transitions, which closes the read-then-write race the same way
// the Postgres store's row lock does.
type InMemory struct {
	mu       sync.RWMutex
	visits   map[string]*Visit
	byPublic map[string]string // public_id -> id
	byToken  map[string]string // verification token -> id
	history  map[string][]HistoryEntry

	now         func() time.Time
	invalidator ViewInvalidator
}

// Option configures an InMemory service.
type Option func(*InMemory)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemory) { s.now = now }
}

// WithViewInvalidator wires cache invalidation into every transition.
func WithViewInvalidator(v ViewInvalidator) Option {
	return func(s *InMemory) { s.invalidator = v }
}

// NewInMemory creates an empty visit service.
func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		visits:   make(map[string]*Visit),
		byPublic: make(map[string]string),
		byToken:  make(map[string]string),
		history:  make(map[string][]HistoryEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ValidateCreate rejects incomplete create parameters before any store work.
func ValidateCreate(p CreateParams) error {
	switch {
	case p.OrganizationID == "":
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	case p.BranchID == "":
		return fmt.Errorf("%w: branch_id required", ErrInvalidInput)
	case p.VisitorID == "":
		return fmt.Errorf("%w: visitor_id required", ErrInvalidInput)
	case p.HostEmployeeID == "":
		return fmt.Errorf("%w: host_employee_id required", ErrInvalidInput)
	case p.Purpose == "":
		return fmt.Errorf("%w: purpose required", ErrInvalidInput)
	case p.ValidityHours <= 0:
		return fmt.Errorf("%w: validity_hours must be positive", ErrInvalidInput)
	case p.AdditionalVisitorCount < 0:
		return fmt.Errorf("%w: additional_visitor_count must not be negative", ErrInvalidInput)
	}
	return nil
}

func (s *InMemory) Create(ctx context.Context, actor auth.Actor, p CreateParams) (Visit, error) {
	if err := ValidateCreate(p); err != nil {
		return Visit{}, err
	}

	now := s.now()
	v := &Visit{
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
		v.Status = StatusIncompleteProfile
	} else {
		v.Status = ResolveInitialStatus(p.Policy)
	}
	if v.Status == StatusPendingVerification || (p.Draft && p.Policy.EmailVerificationRequired) {
		v.VerificationToken = uuid.NewString()
	}

	s.mu.Lock()
	s.visits[v.ID] = v
	s.byPublic[v.PublicID] = v.ID
	if v.VerificationToken != "" {
		s.byToken[v.VerificationToken] = v.ID
	}
	s.history[v.ID] = append(s.history[v.ID], HistoryEntry{
		ID:            ids.New(),
		VisitID:       v.ID,
		ToStatus:      v.Status,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		CreatedAt:     now,
	})
	out := *v
	s.mu.Unlock()
	return out, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[id]
	if !ok {
		return Visit{}, ErrNotFound
	}
	return *v, nil
}

func (s *InMemory) GetByPublicID(ctx context.Context, publicID string) (Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPublic[publicID]
	if !ok {
		return Visit{}, ErrNotFound
	}
	return *s.visits[id], nil
}

func (s *InMemory) List(ctx context.Context, f Filter) ([]Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Visit, 0)
	for _, v := range s.visits {
		if f.OrganizationID != "" && v.OrganizationID != f.OrganizationID {
			continue
		}
		if f.BranchID != "" && v.BranchID != f.BranchID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, v.Status) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemory) History(ctx context.Context, visitID string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.visits[visitID]; !ok {
		return nil, ErrNotFound
	}
	entries := s.history[visitID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *InMemory) Transition(ctx context.Context, actor auth.Actor, visitID string, event Event, reason string) (Visit, error) {
	s.mu.Lock()
	v, ok := s.visits[visitID]
	if !ok {
		s.mu.Unlock()
		return Visit{}, ErrNotFound
	}

	from := v.Status
	if err := Apply(v, event, actor, reason); err != nil {
		s.mu.Unlock()
		return Visit{}, err
	}

	now := s.now()
	switch event {
	case EventCheckIn:
		v.CheckinAt = &now
	case EventCheckOut:
		v.CheckoutAt = &now
	case EventVerify:
		delete(s.byToken, v.VerificationToken)
		v.VerificationToken = ""
	}
	v.UpdatedAt = now
	s.history[v.ID] = append(s.history[v.ID], HistoryEntry{
		ID:            ids.New(),
		VisitID:       v.ID,
		FromStatus:    from,
		ToStatus:      v.Status,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		Note:          reason,
		CreatedAt:     now,
	})
	out := *v
	s.mu.Unlock()

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, out.PublicID)
	}
	return out, nil
}

// Verify consumes a one-time verification token and applies the verify event
// as the SYSTEM actor.
func (s *InMemory) Verify(ctx context.Context, token string) (Visit, error) {
	if token == "" {
		return Visit{}, fmt.Errorf("%w: token required", ErrInvalidInput)
	}
	s.mu.RLock()
	id, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return Visit{}, ErrNotFound
	}
	return s.Transition(ctx, auth.System, id, EventVerify, "")
}

func (s *InMemory) ListOverdue(ctx context.Context, organizationID string, before time.Time) ([]Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Visit
	for _, v := range s.visits {
		if v.OrganizationID != organizationID {
			continue
		}
		if v.Status != StatusIncompleteProfile && v.Status != StatusPendingVerification {
			continue
		}
		if v.CreatedAt.Before(before) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(set []Status, s Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

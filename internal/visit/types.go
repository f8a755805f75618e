package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatehouse.io/internal/auth"
)

// Status is the lifecycle state of a visit.
type Status string

const (
	StatusIncompleteProfile   Status = "INCOMPLETE_PROFILE"
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	StatusPendingApproval     Status = "PENDING_APPROVAL"
	StatusApproved            Status = "APPROVED"
	StatusCheckedIn           Status = "CHECKED_IN"
	StatusCheckedOut          Status = "CHECKED_OUT"
	StatusDeclined            Status = "DECLINED"
	StatusCancelled           Status = "CANCELLED"
)

// Event names a requested lifecycle transition.
type Event string

const (
	EventComplete Event = "complete"
	EventVerify   Event = "verify"
	EventApprove  Event = "approve"
	EventDecline  Event = "decline"
	EventCancel   Event = "cancel"
	EventCheckIn  Event = "checkin"
	EventCheckOut Event = "checkout"
)

var (
	ErrNotFound     = errors.New("visit: not found")
	ErrInvalidInput = errors.New("visit: invalid input")
	ErrForbidden    = errors.New("visit: actor not permitted")

	// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
	ErrInvalidTransition = errors.New("visit: invalid transition")
)

// InvalidTransitionError reports both the current and the requested state so
// callers can resync their view of the visit.
type InvalidTransitionError struct {
	Current   Status
	Requested Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("visit: cannot %s from status %s", e.Requested, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// Visit is the aggregate root of the system.
type Visit struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	BranchID       string `json:"branch_id"`
	VisitorID      string `json:"visitor_id"`
	HostEmployeeID string `json:"host_employee_id"`

	// PublicID is the unguessable identifier used by the public status page.
	PublicID string `json:"public_id"`

	Purpose                string    `json:"purpose"`
	PurposeOther           string    `json:"purpose_other,omitempty"`
	ValidityHours          int       `json:"validity_hours"`
	ScheduledStartAt       time.Time `json:"scheduled_start_at"`
	AdditionalVisitorCount int       `json:"additional_visitor_count"`
	AdditionalVisitorNames string    `json:"additional_visitor_names,omitempty"`

	Status       Status `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`

	// RequiresHostApproval and EmailVerificationRequired are resolved from
	// policy at creation time and frozen; later policy edits do not affect
	// existing visits.
	RequiresHostApproval      bool `json:"requires_host_approval"`
	EmailVerificationRequired bool `json:"email_verification_required"`

	// VerificationToken is consumed by the email-verification callback and
	// cleared afterwards. Never exposed in public projections.
	VerificationToken string `json:"-"`

	CheckinAt  *time.Time `json:"checkin_at,omitempty"`
	CheckoutAt *time.Time `json:"checkout_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HistoryEntry is one append-only audit record of a status change. FromStatus
// is empty for the entry written at creation.
type HistoryEntry struct {
	ID            string         `json:"id"`
	VisitID       string         `json:"visit_id"`
	FromStatus    Status         `json:"from_status,omitempty"`
	ToStatus      Status         `json:"to_status"`
	ChangedByType auth.ActorType `json:"changed_by_type"`
	ChangedByID   string         `json:"changed_by_id,omitempty"`
	Note          string         `json:"note,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PolicyInputs are the policy flags read at creation time.
type PolicyInputs struct {
	OrgApprovalRequired       bool
	HostApprovalRequired      bool
	EmailVerificationRequired bool
}

// RequiresApproval is the OR of the org-level default and the host flag.
func (p PolicyInputs) RequiresApproval() bool {
	return p.OrgApprovalRequired || p.HostApprovalRequired
}

// CreateParams carries everything needed to persist a new visit.
type CreateParams struct {
	OrganizationID string
	BranchID       string
	VisitorID      string
	HostEmployeeID string

	Purpose                string
	PurposeOther           string
	ValidityHours          int
	ScheduledStartAt       time.Time
	AdditionalVisitorCount int
	AdditionalVisitorNames string

	// Draft marks a kiosk wizard in progress; the visit starts in
	// INCOMPLETE_PROFILE until the complete event is applied.
	Draft bool

	Policy PolicyInputs
}

// Filter narrows visit listings.
type Filter struct {
	OrganizationID string
	BranchID       string
	Statuses       []Status
	Limit          int
}

// ViewInvalidator drops cached projections of a visit after a transition.
// A nil invalidator is a no-op.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, publicID string)
}

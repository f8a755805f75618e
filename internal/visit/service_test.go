package visit

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatehouse.io/internal/auth"
)

var (
	testAdmin    = auth.Actor{Type: auth.ActorAdmin, ID: "adm1", OrganizationID: "org1"}
	testSecurity = auth.Actor{Type: auth.ActorSecurity, ID: "sec1", OrganizationID: "org1"}
)

func newTestParams() CreateParams {
	return CreateParams{
		OrganizationID:   "org1",
		BranchID:         "br1",
		VisitorID:        "vis1",
		HostEmployeeID:   "emp1",
		Purpose:          "MEETING",
		ValidityHours:    8,
		ScheduledStartAt: time.Now().UTC(),
	}
}

func TestCreateResolvesStatusFromPolicy(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	p := newTestParams()
	v, err := s.Create(ctx, auth.Anonymous, p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Fatalf("got %s, want APPROVED", v.Status)
	}
	if v.PublicID == "" {
		t.Fatal("public id not assigned")
	}

	p.Policy = PolicyInputs{HostApprovalRequired: true}
	v, err = s.Create(ctx, auth.Anonymous, p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("host flag: got %s, want PENDING_APPROVAL", v.Status)
	}
	if !v.RequiresHostApproval {
		t.Fatal("requires_host_approval not frozen on the visit")
	}
}

func TestCreateWritesInitialHistoryEntry(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	v, err := s.Create(ctx, auth.Anonymous, newTestParams())
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.History(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 {
		t.Fatalf("got %d history entries, want 1", len(h))
	}
	if h[0].FromStatus != "" || h[0].ToStatus != StatusApproved {
		t.Fatalf("unexpected initial entry: %+v", h[0])
	}
}

func TestApproveCheckinCheckoutFlow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	p := newTestParams()
	p.Policy = PolicyInputs{OrgApprovalRequired: true}
	v, err := s.Create(ctx, auth.Anonymous, p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("got %s, want PENDING_APPROVAL", v.Status)
	}

	v, err = s.Transition(ctx, testAdmin, v.ID, EventApprove, "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Fatalf("got %s, want APPROVED", v.Status)
	}

	v, err = s.Transition(ctx, testSecurity, v.ID, EventCheckIn, "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusCheckedIn || v.CheckinAt == nil {
		t.Fatalf("checkin not recorded: %+v", v)
	}

	v, err = s.Transition(ctx, testSecurity, v.ID, EventCheckOut, "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusCheckedOut || v.CheckoutAt == nil {
		t.Fatalf("checkout not recorded: %+v", v)
	}
	if !v.CheckoutAt.After(*v.CheckinAt) && !v.CheckoutAt.Equal(*v.CheckinAt) {
		t.Fatalf("checkout_at %v precedes checkin_at %v", v.CheckoutAt, v.CheckinAt)
	}

	h, _ := s.History(ctx, v.ID)
	if len(h) != 4 {
		t.Fatalf("got %d history entries, want 4", len(h))
	}
	// Chain integrity: each from_status equals the prior entry's to_status.
	for i := 1; i < len(h); i++ {
		if h[i].FromStatus != h[i-1].ToStatus {
			t.Fatalf("broken chain at %d: %s -> %s", i, h[i-1].ToStatus, h[i].FromStatus)
		}
	}
	if h[1].ChangedByType != auth.ActorAdmin || h[1].ChangedByID != "adm1" {
		t.Fatalf("approve actor not recorded: %+v", h[1])
	}
}

func TestGuardLeavesVisitUnchanged(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	v, err := s.Create(ctx, auth.Anonymous, newTestParams())
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Transition(ctx, testSecurity, v.ID, EventCheckOut, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}

	got, _ := s.Get(ctx, v.ID)
	if got.Status != v.Status || got.CheckoutAt != nil || !got.UpdatedAt.Equal(v.UpdatedAt) {
		t.Fatalf("visit mutated by failed transition: %+v", got)
	}
	h, _ := s.History(ctx, v.ID)
	if len(h) != 1 {
		t.Fatalf("history grew on failed transition: %d entries", len(h))
	}
}

func TestVerifyConsumesToken(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	p := newTestParams()
	p.Policy = PolicyInputs{EmailVerificationRequired: true, HostApprovalRequired: true}
	v, err := s.Create(ctx, auth.Anonymous, p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingVerification {
		t.Fatalf("got %s, want PENDING_VERIFICATION", v.Status)
	}
	if v.VerificationToken == "" {
		t.Fatal("verification token not assigned")
	}

	got, err := s.Verify(ctx, v.VerificationToken)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPendingApproval {
		t.Fatalf("got %s, want PENDING_APPROVAL", got.Status)
	}

	if _, err := s.Verify(ctx, v.VerificationToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token reusable: %v", err)
	}

	h, _ := s.History(ctx, v.ID)
	last := h[len(h)-1]
	if last.ChangedByType != auth.ActorSystem {
		t.Fatalf("verify not recorded as SYSTEM: %+v", last)
	}
}

func TestDraftCompleteFlow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	p := newTestParams()
	p.Draft = true
	p.Policy = PolicyInputs{OrgApprovalRequired: true}
	v, err := s.Create(ctx, auth.Anonymous, p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusIncompleteProfile {
		t.Fatalf("got %s, want INCOMPLETE_PROFILE", v.Status)
	}

	v, err = s.Transition(ctx, auth.Anonymous, v.ID, EventComplete, "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("got %s, want PENDING_APPROVAL", v.Status)
	}
}

func TestCancelForbiddenAfterCheckin(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	v, _ := s.Create(ctx, auth.Anonymous, newTestParams())
	if _, err := s.Transition(ctx, testSecurity, v.ID, EventCheckIn, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Transition(ctx, testAdmin, v.ID, EventCancel, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

type recordingInvalidator struct {
	publicIDs []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, publicID string) {
	r.publicIDs = append(r.publicIDs, publicID)
}

func TestTransitionInvalidatesCachedView(t *testing.T) {
	inv := &recordingInvalidator{}
	s := NewInMemory(WithViewInvalidator(inv))
	ctx := context.Background()

	v, _ := s.Create(ctx, auth.Anonymous, newTestParams())
	if _, err := s.Transition(ctx, testSecurity, v.ID, EventCheckIn, ""); err != nil {
		t.Fatal(err)
	}
	if len(inv.publicIDs) != 1 || inv.publicIDs[0] != v.PublicID {
		t.Fatalf("cache not invalidated: %v", inv.publicIDs)
	}
}

func TestSweeperCancelsOverdueVisits(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	s := NewInMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	p := newTestParams()
	p.Policy = PolicyInputs{EmailVerificationRequired: true}
	stale, _ := s.Create(ctx, auth.Anonymous, p)

	now = base.Add(10 * time.Hour)
	fresh, _ := s.Create(ctx, auth.Anonymous, p)

	sw := NewSweeper(s, func(context.Context) ([]AutoCancelRule, error) {
		return []AutoCancelRule{{OrganizationID: "org1", After: 4 * time.Hour}}, nil
	}, time.Minute)
	sw.now = func() time.Time { return now }
	sw.sweep(ctx)

	got, _ := s.Get(ctx, stale.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("stale visit not cancelled: %s", got.Status)
	}
	if got.StatusReason != AutoCancelReason {
		t.Fatalf("unexpected reason: %q", got.StatusReason)
	}

	got, _ = s.Get(ctx, fresh.ID)
	if got.Status != StatusPendingVerification {
		t.Fatalf("fresh visit swept: %s", got.Status)
	}
}

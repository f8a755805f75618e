package visit

import (
	"errors"
	"testing"

	"gatehouse.io/internal/auth"
)

func TestResolveInitialStatus(t *testing.T) {
	cases := []struct {
		name string
		in   PolicyInputs
		want Status
	}{
		{"no policy", PolicyInputs{}, StatusApproved},
		{"org approval", PolicyInputs{OrgApprovalRequired: true}, StatusPendingApproval},
		{"host approval", PolicyInputs{HostApprovalRequired: true}, StatusPendingApproval},
		{"verification wins over approval", PolicyInputs{EmailVerificationRequired: true, OrgApprovalRequired: true}, StatusPendingVerification},
		{"verification alone", PolicyInputs{EmailVerificationRequired: true}, StatusPendingVerification},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveInitialStatus(tc.in); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		event   Event
		actor   auth.ActorType
		wantErr error
	}{
		{"approve from pending", StatusPendingApproval, EventApprove, auth.ActorAdmin, nil},
		{"approve by security", StatusPendingApproval, EventApprove, auth.ActorSecurity, ErrForbidden},
		{"approve from approved", StatusApproved, EventApprove, auth.ActorAdmin, ErrInvalidTransition},
		{"decline from pending", StatusPendingApproval, EventDecline, auth.ActorAdmin, nil},
		{"checkin from approved by security", StatusApproved, EventCheckIn, auth.ActorSecurity, nil},
		{"checkin from approved by admin", StatusApproved, EventCheckIn, auth.ActorAdmin, nil},
		{"checkin from pending", StatusPendingApproval, EventCheckIn, auth.ActorSecurity, ErrInvalidTransition},
		{"checkout from checked in", StatusCheckedIn, EventCheckOut, auth.ActorSecurity, nil},
		{"checkout from approved", StatusApproved, EventCheckOut, auth.ActorSecurity, ErrInvalidTransition},
		{"cancel from approved", StatusApproved, EventCancel, auth.ActorAdmin, nil},
		{"cancel from checked in", StatusCheckedIn, EventCancel, auth.ActorAdmin, ErrInvalidTransition},
		{"cancel by system", StatusPendingVerification, EventCancel, auth.ActorSystem, nil},
		{"cancel by security", StatusApproved, EventCancel, auth.ActorSecurity, ErrForbidden},
		{"verify by system", StatusPendingVerification, EventVerify, auth.ActorSystem, nil},
		{"verify by admin", StatusPendingVerification, EventVerify, auth.ActorAdmin, ErrForbidden},
		{"complete from incomplete", StatusIncompleteProfile, EventComplete, auth.ActorAnonymous, nil},
		{"complete from approved", StatusApproved, EventComplete, auth.ActorAnonymous, ErrInvalidTransition},
		{"unknown event", StatusApproved, Event("nonsense"), auth.ActorAdmin, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.from, tc.event, tc.actor)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyResolvesVerifyTarget(t *testing.T) {
	v := &Visit{Status: StatusPendingVerification, RequiresHostApproval: true}
	if err := Apply(v, EventVerify, auth.System, ""); err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("got %s, want %s", v.Status, StatusPendingApproval)
	}

	v = &Visit{Status: StatusPendingVerification}
	if err := Apply(v, EventVerify, auth.System, ""); err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Fatalf("got %s, want %s", v.Status, StatusApproved)
	}
}

func TestApplyResolvesCompleteTarget(t *testing.T) {
	v := &Visit{Status: StatusIncompleteProfile, EmailVerificationRequired: true, RequiresHostApproval: true}
	if err := Apply(v, EventComplete, auth.Anonymous, ""); err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingVerification {
		t.Fatalf("got %s, want %s", v.Status, StatusPendingVerification)
	}

	v = &Visit{Status: StatusIncompleteProfile, RequiresHostApproval: true}
	if err := Apply(v, EventComplete, auth.Anonymous, ""); err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("got %s, want %s", v.Status, StatusPendingApproval)
	}
}

func TestDeclineRequiresReason(t *testing.T) {
	v := &Visit{Status: StatusPendingApproval}
	err := Apply(v, EventDecline, auth.Actor{Type: auth.ActorAdmin, ID: "a1"}, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if v.Status != StatusPendingApproval {
		t.Fatalf("status mutated on failed apply: %s", v.Status)
	}
}

func TestInvalidTransitionReportsBothStates(t *testing.T) {
	err := Check(StatusApproved, EventCheckOut, auth.ActorSecurity)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.Current != StatusApproved || ite.Requested != EventCheckOut {
		t.Fatalf("unexpected detail: %+v", ite)
	}
}

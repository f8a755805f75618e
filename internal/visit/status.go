package visit

import "gatehouse.io/internal/auth"

// rule describes one row of the transition table. To is left empty for
// EventVerify because the target depends on the approval flag frozen on the
// visit; resolveTarget handles that case.
type rule struct {
	from          []Status
	to            Status
	actors        []auth.ActorType
	requireReason bool
}

// transitions is the single authoritative table. Every state change in the
// system, whatever its entry point, goes through Apply and therefore through
// this table.
var transitions = map[Event]rule{
	EventComplete: {
		from:   []Status{StatusIncompleteProfile},
		actors: []auth.ActorType{auth.ActorAnonymous, auth.ActorKiosk, auth.ActorAdmin},
	},
	EventVerify: {
		from:   []Status{StatusPendingVerification},
		actors: []auth.ActorType{auth.ActorSystem},
	},
	EventApprove: {
		from:   []Status{StatusPendingApproval},
		to:     StatusApproved,
		actors: []auth.ActorType{auth.ActorAdmin},
	},
	EventDecline: {
		from:          []Status{StatusPendingApproval},
		to:            StatusDeclined,
		actors:        []auth.ActorType{auth.ActorAdmin},
		requireReason: true,
	},
	EventCancel: {
		from: []Status{
			StatusIncompleteProfile,
			StatusPendingVerification,
			StatusPendingApproval,
			StatusApproved,
		},
		to:     StatusCancelled,
		actors: []auth.ActorType{auth.ActorAdmin, auth.ActorSystem},
	},
	EventCheckIn: {
		from:   []Status{StatusApproved},
		to:     StatusCheckedIn,
		actors: []auth.ActorType{auth.ActorAdmin, auth.ActorSecurity},
	},
	EventCheckOut: {
		from:   []Status{StatusCheckedIn},
		to:     StatusCheckedOut,
		actors: []auth.ActorType{auth.ActorAdmin, auth.ActorSecurity},
	},
}

// ResolveInitialStatus maps the policy flags captured at creation to the
// status a new, complete profile starts in. Verification outranks approval.
func ResolveInitialStatus(p PolicyInputs) Status {
	if p.EmailVerificationRequired {
		return StatusPendingVerification
	}
	if p.RequiresApproval() {
		return StatusPendingApproval
	}
	return StatusApproved
}

// resolveTarget computes dynamic targets. Profile completion re-runs the
// full initial resolution from the flags frozen on the visit; verification
// runs the same resolution minus the verification step.
func resolveTarget(v *Visit, e Event, r rule) Status {
	switch e {
	case EventComplete:
		if v.EmailVerificationRequired {
			return StatusPendingVerification
		}
		fallthrough
	case EventVerify:
		if v.RequiresHostApproval {
			return StatusPendingApproval
		}
		return StatusApproved
	default:
		return r.to
	}
}

func (r rule) allowsFrom(s Status) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

func (r rule) allowsActor(t auth.ActorType) bool {
	for _, a := range r.actors {
		if a == t {
			return true
		}
	}
	return false
}

// Check validates an event against the table without mutating anything.
// Actor gating is checked before the state so that an unauthorized caller
// learns nothing about the current status.
func Check(current Status, event Event, actor auth.ActorType) error {
	r, ok := transitions[event]
	if !ok {
		return &InvalidTransitionError{Current: current, Requested: event}
	}
	if !r.allowsActor(actor) {
		return ErrForbidden
	}
	if !r.allowsFrom(current) {
		return &InvalidTransitionError{Current: current, Requested: event}
	}
	return nil
}

// Apply mutates v's status in place for one table-validated event. Callers
// stamp timestamps; keeping that out of here lets the memory and database
// implementations share identical validation.
func Apply(v *Visit, event Event, actor auth.Actor, reason string) error {
	r, ok := transitions[event]
	if !ok {
		return &InvalidTransitionError{Current: v.Status, Requested: event}
	}
	if !r.allowsActor(actor.Type) {
		return ErrForbidden
	}
	if !r.allowsFrom(v.Status) {
		return &InvalidTransitionError{Current: v.Status, Requested: event}
	}
	if r.requireReason && reason == "" {
		return ErrInvalidInput
	}
	if event == EventCancel && v.CheckinAt != nil {
		return &InvalidTransitionError{Current: v.Status, Requested: event}
	}
	v.Status = resolveTarget(v, event, r)
	v.StatusReason = reason
	return nil
}

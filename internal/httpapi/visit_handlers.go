package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/obs"
	"gatehouse.io/internal/policy"
	"gatehouse.io/internal/stream"
	"gatehouse.io/internal/visit"
	"gatehouse.io/internal/visitor"
)

type visitorPayload struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
}

type createVisitRequest struct {
	Visitor                visitorPayload `json:"visitor"`
	OrganizationID         string         `json:"organization_id"`
	BranchID               string         `json:"branch_id"`
	HostEmployeeID         string         `json:"host_employee_id"`
	Purpose                string         `json:"purpose"`
	PurposeOther           string         `json:"purpose_other"`
	ValidityHours          int            `json:"validity_hours"`
	ScheduledStartAt       time.Time      `json:"scheduled_start_at"`
	AdditionalVisitorCount int            `json:"additional_visitor_count"`
	AdditionalVisitorNames string         `json:"additional_visitor_names"`
	Draft                  bool           `json:"draft"`
}

type createVisitResponse struct {
	Visit   visit.Visit     `json:"visit"`
	Visitor visitor.Visitor `json:"visitor"`
	// VerificationToken is returned so the kiosk can hand it to the mail
	// sender; it never appears on any later read.
	VerificationToken string `json:"verification_token,omitempty"`
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (a *API) handleVisitsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createVisit(w, r, false)
	case http.MethodGet:
		a.listVisits(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAdminVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.createVisit(w, r, true)
}

func (a *API) handleVisitResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/visits/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if path == "verify" {
		a.verifyVisit(w, r)
		return
	}

	id, action, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getVisit(w, r, id)
	case "attachments":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listVisitAttachments(w, r, id)
	case "approve":
		a.transitionVisit(w, r, id, visit.EventApprove, auth.ActorAdmin)
	case "decline":
		a.transitionVisit(w, r, id, visit.EventDecline, auth.ActorAdmin)
	case "cancel":
		a.transitionVisit(w, r, id, visit.EventCancel, auth.ActorAdmin)
	case "checkin":
		a.transitionVisit(w, r, id, visit.EventCheckIn, auth.ActorAdmin, auth.ActorSecurity)
	case "checkout":
		a.transitionVisit(w, r, id, visit.EventCheckOut, auth.ActorAdmin, auth.ActorSecurity)
	case "complete":
		a.completeVisit(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// createVisit serves both the unauthenticated kiosk flow and the admin
// walk-in flow; manual gates on the organization's allow_manual_walkin.
func (a *API) createVisit(w http.ResponseWriter, r *http.Request, manual bool) {
	var actor auth.Actor
	if manual {
		adm, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		actor = adm
	} else {
		actor = auth.ActorFromContext(r.Context())
	}

	var req createVisitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	orgID := strings.TrimSpace(req.OrganizationID)
	if manual && actor.OrganizationID != "" {
		orgID = actor.OrganizationID
	}
	if orgID == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}

	cfg, err := a.deps.Policy.GetConfig(r.Context(), orgID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if manual && !cfg.AllowManualWalkin {
		writeError(w, r, http.StatusForbidden, "manual walk-in registration is disabled for this organization")
		return
	}

	fieldRows, err := a.deps.Policy.ListFieldConfigs(r.Context(), orgID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if fieldErrs := validateConfiguredFields(policy.ResolveFields(fieldRows), &req); len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": fieldErrs,
		})
		return
	}

	branch, err := a.deps.Directory.GetBranch(r.Context(), strings.TrimSpace(req.BranchID))
	if err != nil || branch.OrganizationID != orgID || !branch.IsActive {
		writeError(w, r, http.StatusBadRequest, "branch not found or inactive")
		return
	}
	host, err := a.deps.Directory.GetEmployee(r.Context(), strings.TrimSpace(req.HostEmployeeID))
	if err != nil || host.OrganizationID != orgID || !host.IsActive {
		writeError(w, r, http.StatusBadRequest, "host not found or inactive")
		return
	}

	vis, err := a.deps.Visitors.UpsertVisitor(r.Context(), visitor.UpsertParams{
		OrganizationID: orgID,
		FullName:       strings.TrimSpace(req.Visitor.FullName),
		Email:          req.Visitor.Email,
		Phone:          strings.TrimSpace(req.Visitor.Phone),
		Company:        strings.TrimSpace(req.Visitor.Company),
		Designation:    strings.TrimSpace(req.Visitor.Designation),
	})
	if err != nil {
		if errors.Is(err, visitor.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	scheduled := req.ScheduledStartAt
	if scheduled.IsZero() {
		scheduled = time.Now().UTC()
	}
	validity := req.ValidityHours
	if validity <= 0 {
		validity = 8
	}

	v, err := a.deps.Visits.Create(r.Context(), actor, visit.CreateParams{
		OrganizationID:         orgID,
		BranchID:               branch.ID,
		VisitorID:              vis.ID,
		HostEmployeeID:         host.ID,
		Purpose:                strings.TrimSpace(req.Purpose),
		PurposeOther:           strings.TrimSpace(req.PurposeOther),
		ValidityHours:          validity,
		ScheduledStartAt:       scheduled,
		AdditionalVisitorCount: req.AdditionalVisitorCount,
		AdditionalVisitorNames: strings.TrimSpace(req.AdditionalVisitorNames),
		Draft:                  req.Draft,
		Policy: visit.PolicyInputs{
			OrgApprovalRequired:       cfg.ApprovalRequired,
			HostApprovalRequired:      host.RequiresHostApproval,
			EmailVerificationRequired: cfg.EmailVerificationRequired,
		},
	})
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	obs.IncVisitCreated(string(v.Status))
	_ = audit.LogEvent(r.Context(), "visit.created", map[string]any{
		"visit_id":        v.ID,
		"organization_id": v.OrganizationID,
		"status":          string(v.Status),
		"manual":          manual,
	})
	a.publishVisitEvent(v, "")

	w.Header().Set("Location", "/v1/visits/"+v.ID)
	writeJSON(w, http.StatusCreated, createVisitResponse{
		Visit:             v,
		Visitor:           vis,
		VerificationToken: v.VerificationToken,
	})
}

// validateConfiguredFields enforces the per-organization required flags on
// the optional visitor fields. Hidden fields are cleared rather than
// validated: visibility dominates.
func validateConfiguredFields(fields []policy.ResolvedField, req *createVisitRequest) map[string]string {
	errs := make(map[string]string)
	for _, f := range fields {
		var val *string
		switch f.Key {
		case policy.FieldVisitorCompany:
			val = &req.Visitor.Company
		case policy.FieldVisitorDesignation:
			val = &req.Visitor.Designation
		case policy.FieldVisitorPhone:
			val = &req.Visitor.Phone
		case policy.FieldVisitPurposeOther:
			val = &req.PurposeOther
		default:
			continue
		}
		if !f.Visible {
			*val = ""
			continue
		}
		if f.Required && strings.TrimSpace(*val) == "" {
			errs[f.Key] = "required"
		}
	}
	return errs
}

func (a *API) getVisit(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
	if !ok {
		return
	}
	v, err := a.deps.Visits.Get(r.Context(), id)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}
	if actor.OrganizationID != "" && v.OrganizationID != actor.OrganizationID {
		writeError(w, r, http.StatusNotFound, visit.ErrNotFound.Error())
		return
	}
	history, err := a.deps.Visits.History(r.Context(), id)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"visit":   v,
		"history": history,
	})
}

func (a *API) listVisits(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
	if !ok {
		return
	}

	f := visit.Filter{
		OrganizationID: actor.OrganizationID,
		BranchID:       strings.TrimSpace(r.URL.Query().Get("branch_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, visit.Status(s))
			}
		}
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f.Limit = limit

	items, err := a.deps.Visits.List(r.Context(), f)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) transitionVisit(w http.ResponseWriter, r *http.Request, id string, event visit.Event, roles ...auth.ActorType) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := requireActor(w, r, roles...)
	if !ok {
		return
	}

	var req transitionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if event == visit.EventDecline && strings.TrimSpace(req.Reason) == "" {
		writeError(w, r, http.StatusBadRequest, "reason is required to decline a visit")
		return
	}

	if actor.OrganizationID != "" {
		current, err := a.deps.Visits.Get(r.Context(), id)
		if err != nil {
			handleVisitError(w, r, err)
			return
		}
		if current.OrganizationID != actor.OrganizationID {
			writeError(w, r, http.StatusNotFound, visit.ErrNotFound.Error())
			return
		}
	}

	v, err := a.deps.Visits.Transition(r.Context(), actor, id, event, strings.TrimSpace(req.Reason))
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	obs.IncVisitTransition(string(v.Status))
	_ = audit.LogEvent(r.Context(), "visit."+string(event), map[string]any{
		"visit_id": v.ID,
		"status":   string(v.Status),
	})
	a.publishVisitEvent(v, "")

	writeJSON(w, http.StatusOK, v)
}

// completeVisit finishes the kiosk wizard; no role gate, the visit id is the
// capability.
func (a *API) completeVisit(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor := auth.ActorFromContext(r.Context())

	v, err := a.deps.Visits.Transition(r.Context(), actor, id, visit.EventComplete, "")
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	obs.IncVisitTransition(string(v.Status))
	_ = audit.LogEvent(r.Context(), "visit.completed", map[string]any{
		"visit_id": v.ID,
		"status":   string(v.Status),
	})
	a.publishVisitEvent(v, "")

	resp := createVisitResponse{Visit: v, VerificationToken: v.VerificationToken}
	if vis, err := a.deps.Visitors.GetVisitor(r.Context(), v.VisitorID); err == nil {
		resp.Visitor = vis
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) verifyVisit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	v, err := a.deps.Visits.Verify(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	obs.IncVisitTransition(string(v.Status))
	_ = audit.LogEvent(r.Context(), "visit.verified", map[string]any{
		"visit_id": v.ID,
		"status":   string(v.Status),
	})
	a.publishVisitEvent(v, "")

	writeJSON(w, http.StatusOK, v)
}

func (a *API) listVisitAttachments(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
	if !ok {
		return
	}
	v, err := a.deps.Visits.Get(r.Context(), visitID)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}
	if actor.OrganizationID != "" && v.OrganizationID != actor.OrganizationID {
		writeError(w, r, http.StatusNotFound, visit.ErrNotFound.Error())
		return
	}
	items, err := a.deps.Attachments.ListByVisit(r.Context(), visitID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// publishVisitEvent feeds the live security board; a full subscriber drops
// the event rather than blocking the response.
func (a *API) publishVisitEvent(v visit.Visit, fromStatus string) {
	if a.deps.Stream == nil {
		return
	}
	evt := stream.VisitEvent{
		VisitID:    v.ID,
		BranchID:   v.BranchID,
		FromStatus: fromStatus,
		ToStatus:   string(v.Status),
		Timestamp:  time.Now().UTC(),
	}
	a.deps.Stream.Publish(evt)
}

func handleVisitError(w http.ResponseWriter, r *http.Request, err error) {
	var ite *visit.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		payload := map[string]any{
			"error":            ite.Error(),
			"current_status":   string(ite.Current),
			"requested_action": string(ite.Requested),
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, visit.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, visit.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, visit.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, visit.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit out of range")
	}
	return val, nil
}

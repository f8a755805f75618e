package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/policy"
)

type configRequest struct {
	ApprovalRequired            bool   `json:"approval_required"`
	EmailVerificationRequired   bool   `json:"email_verification_required"`
	AllowManualWalkin           bool   `json:"allow_manual_walkin"`
	ApprovalRecipient           string `json:"approval_recipient"`
	AutoCancelIncompleteAfterHr int    `json:"auto_cancel_incomplete_after_hours"`
}

type fieldConfigRequest struct {
	FieldKey   string `json:"field_key"`
	IsVisible  bool   `json:"is_visible"`
	IsRequired bool   `json:"is_required"`
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		cfg, err := a.deps.Policy.GetConfig(r.Context(), actor.OrganizationID)
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		var req configRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		cfg, err := a.deps.Policy.PutConfig(r.Context(), policy.Config{
			OrganizationID:              actor.OrganizationID,
			ApprovalRequired:            req.ApprovalRequired,
			EmailVerificationRequired:   req.EmailVerificationRequired,
			AllowManualWalkin:           req.AllowManualWalkin,
			ApprovalRecipient:           policy.Recipient(strings.TrimSpace(req.ApprovalRecipient)),
			AutoCancelIncompleteAfterHr: req.AutoCancelIncompleteAfterHr,
		})
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "config.updated", map[string]any{
			"organization_id": cfg.OrganizationID,
			"actor_id":        actor.ID,
		})
		writeJSON(w, http.StatusOK, cfg)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleFieldConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		rows, err := a.deps.Policy.ListFieldConfigs(r.Context(), actor.OrganizationID)
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":    rows,
			"resolved": policy.ResolveFields(rows),
		})
	case http.MethodPut:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		var req fieldConfigRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		row, err := a.deps.Policy.UpsertFieldConfig(r.Context(), actor.OrganizationID,
			strings.TrimSpace(req.FieldKey), req.IsVisible, req.IsRequired)
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "config.field_updated", map[string]any{
			"organization_id": actor.OrganizationID,
			"field_key":       row.FieldKey,
			"actor_id":        actor.ID,
		})
		writeJSON(w, http.StatusOK, row)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// handleKioskForm tells the unauthenticated kiosk which optional fields to
// render and which to demand, per organization.
func (a *API) handleKioskForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgID := strings.TrimSpace(r.URL.Query().Get("organization_id"))
	if orgID == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}

	rows, err := a.deps.Policy.ListFieldConfigs(r.Context(), orgID)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	cfg, err := a.deps.Policy.GetConfig(r.Context(), orgID)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id":             orgID,
		"fields":                      policy.ResolveFields(rows),
		"email_verification_required": cfg.EmailVerificationRequired,
	})
}

func handlePolicyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, policy.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, policy.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

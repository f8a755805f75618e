package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/directory"
)

type employeeRequest struct {
	BranchID             string `json:"branch_id"`
	FullName             string `json:"full_name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	Designation          string `json:"designation"`
	RequiresHostApproval bool   `json:"requires_host_approval"`
}

func (req employeeRequest) params(organizationID string) directory.EmployeeParams {
	return directory.EmployeeParams{
		OrganizationID:       organizationID,
		BranchID:             strings.TrimSpace(req.BranchID),
		FullName:             strings.TrimSpace(req.FullName),
		Email:                strings.TrimSpace(req.Email),
		Phone:                strings.TrimSpace(req.Phone),
		Designation:          strings.TrimSpace(req.Designation),
		RequiresHostApproval: req.RequiresHostApproval,
	}
}

type branchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (a *API) handleEmployeesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Security needs the host list for the board; writes stay admin-only.
		actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
		if !ok {
			return
		}
		activeOnly := r.URL.Query().Get("include_inactive") != "true"
		items, err := a.deps.Directory.ListEmployees(r.Context(), actor.OrganizationID,
			strings.TrimSpace(r.URL.Query().Get("branch_id")), activeOnly)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		var req employeeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		emp, err := a.deps.Directory.CreateEmployee(r.Context(), req.params(actor.OrganizationID))
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "employee.created", map[string]any{
			"employee_id": emp.ID,
			"actor_id":    actor.ID,
		})
		writeJSON(w, http.StatusCreated, emp)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEmployeeResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/employees/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
		if !ok {
			return
		}
		emp, err := a.deps.Directory.GetEmployee(r.Context(), id)
		if err != nil || !sameOrg(actor, emp.OrganizationID) {
			handleDirectoryError(w, r, directory.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, emp)
	case http.MethodPut:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		if !a.employeeInOrg(r, id, actor) {
			handleDirectoryError(w, r, directory.ErrNotFound)
			return
		}
		var req employeeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		emp, err := a.deps.Directory.UpdateEmployee(r.Context(), id, req.params(actor.OrganizationID))
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "employee.updated", map[string]any{
			"employee_id": emp.ID,
			"actor_id":    actor.ID,
		})
		writeJSON(w, http.StatusOK, emp)
	case http.MethodDelete:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		if !a.employeeInOrg(r, id, actor) {
			handleDirectoryError(w, r, directory.ErrNotFound)
			return
		}
		if err := a.deps.Directory.DeactivateEmployee(r.Context(), id); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "employee.deactivated", map[string]any{
			"employee_id": id,
			"actor_id":    actor.ID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleBranchesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
		if !ok {
			return
		}
		activeOnly := r.URL.Query().Get("include_inactive") != "true"
		items, err := a.deps.Directory.ListBranches(r.Context(), actor.OrganizationID, activeOnly)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		var req branchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		branch, err := a.deps.Directory.CreateBranch(r.Context(), actor.OrganizationID,
			strings.TrimSpace(req.Name), strings.TrimSpace(req.Address))
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "branch.created", map[string]any{
			"branch_id": branch.ID,
			"actor_id":  actor.ID,
		})
		writeJSON(w, http.StatusCreated, branch)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBranchResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/branches/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
		if !ok {
			return
		}
		branch, err := a.deps.Directory.GetBranch(r.Context(), id)
		if err != nil || !sameOrg(actor, branch.OrganizationID) {
			handleDirectoryError(w, r, directory.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, branch)
	case http.MethodDelete:
		actor, ok := requireActor(w, r, auth.ActorAdmin)
		if !ok {
			return
		}
		if branch, err := a.deps.Directory.GetBranch(r.Context(), id); err != nil || !sameOrg(actor, branch.OrganizationID) {
			handleDirectoryError(w, r, directory.ErrNotFound)
			return
		}
		if err := a.deps.Directory.DeactivateBranch(r.Context(), id); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "branch.deactivated", map[string]any{
			"branch_id": id,
			"actor_id":  actor.ID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func sameOrg(actor auth.Actor, organizationID string) bool {
	return actor.OrganizationID == "" || actor.OrganizationID == organizationID
}

// employeeInOrg guards writes: an id from another tenant reads back as not
// found, never as a mutable row.
func (a *API) employeeInOrg(r *http.Request, id string, actor auth.Actor) bool {
	emp, err := a.deps.Directory.GetEmployee(r.Context(), id)
	return err == nil && sameOrg(actor, emp.OrganizationID)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatehouse.io/internal/auth"
)

// publicVisitView is the reduced projection served to unauthenticated status
// lookups. No visitor contact details, no host email, no internal ids.
type publicVisitView struct {
	PublicID         string     `json:"public_id"`
	Status           string     `json:"status"`
	StatusReason     string     `json:"status_reason,omitempty"`
	VisitorName      string     `json:"visitor_name"`
	VisitorCompany   string     `json:"visitor_company,omitempty"`
	HostName         string     `json:"host_name,omitempty"`
	BranchName       string     `json:"branch_name,omitempty"`
	Purpose          string     `json:"purpose,omitempty"`
	ScheduledStartAt time.Time  `json:"scheduled_start_at"`
	CheckinAt        *time.Time `json:"checkin_at,omitempty"`
}

func (a *API) handlePublicVisit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	publicID := strings.TrimPrefix(r.URL.Path, "/v1/public/visits/")
	if publicID == "" || strings.Contains(publicID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if a.deps.Views != nil {
		var view publicVisitView
		// Any cache failure, redis trouble included, reads through to
		// the store.
		if err := a.deps.Views.GetPublicView(r.Context(), publicID, &view); err == nil {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, view)
			return
		}
	}

	view, err := a.buildPublicView(r, publicID)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	if a.deps.Views != nil {
		_ = a.deps.Views.StorePublicView(r.Context(), publicID, view)
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) buildPublicView(r *http.Request, publicID string) (publicVisitView, error) {
	v, err := a.deps.Visits.GetByPublicID(r.Context(), publicID)
	if err != nil {
		return publicVisitView{}, err
	}

	view := publicVisitView{
		PublicID:         v.PublicID,
		Status:           string(v.Status),
		StatusReason:     v.StatusReason,
		Purpose:          v.Purpose,
		ScheduledStartAt: v.ScheduledStartAt,
		CheckinAt:        v.CheckinAt,
	}
	if vis, err := a.deps.Visitors.GetVisitor(r.Context(), v.VisitorID); err == nil {
		view.VisitorName = vis.FullName
		view.VisitorCompany = vis.Company
	}
	if host, err := a.deps.Directory.GetEmployee(r.Context(), v.HostEmployeeID); err == nil {
		view.HostName = host.FullName
	}
	if branch, err := a.deps.Directory.GetBranch(r.Context(), v.BranchID); err == nil {
		view.BranchName = branch.Name
	}
	return view, nil
}

// StreamEvents pushes visit transitions to the security board over SSE.
// Optional branch_id query narrows the feed to one branch.
func (a *API) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity); !ok {
		return
	}
	if a.deps.Stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "event stream is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := a.deps.Stream.Subscribe(r.Context(), strings.TrimSpace(r.URL.Query().Get("branch_id")))
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case evt, open := <-events:
			if !open {
				return
			}
			raw, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/export"
	"gatehouse.io/internal/obs"
	"gatehouse.io/internal/visit"
)

func (a *API) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	a.exportVisits(w, r, "csv")
}

func (a *API) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	a.exportVisits(w, r, "xlsx")
}

func (a *API) exportVisits(w http.ResponseWriter, r *http.Request, format string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := requireActor(w, r, auth.ActorAdmin)
	if !ok {
		return
	}

	rows, err := a.exportRows(r.Context(), actor.OrganizationID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "report.exported", map[string]any{
		"organization_id": actor.OrganizationID,
		"format":          format,
		"rows":            len(rows),
	})

	filename := fmt.Sprintf("visits-export-%s.%s", time.Now().UTC().Format("2006-01-02"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := export.WriteCSV(w, rows); err != nil {
			obs.LogRequest(map[string]any{
				"level": "error",
				"msg":   "export_write_failed",
				"error": err.Error(),
			})
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := export.WriteXLSX(w, rows); err != nil {
			obs.LogRequest(map[string]any{
				"level": "error",
				"msg":   "export_write_failed",
				"error": err.Error(),
			})
		}
	}
}

// exportRows prefers the store's SQL join; without one it composes rows from
// the individual services, which only in-memory deployments hit.
func (a *API) exportRows(ctx context.Context, organizationID string) ([]export.Row, error) {
	if a.deps.Exporter != nil {
		return a.deps.Exporter.ExportRows(ctx, organizationID)
	}

	visits, err := a.deps.Visits.List(ctx, visit.Filter{OrganizationID: organizationID, Limit: 1000})
	if err != nil {
		return nil, err
	}
	rows := make([]export.Row, 0, len(visits))
	for _, v := range visits {
		row := export.Row{
			Date:       v.CreatedAt,
			Purpose:    v.Purpose,
			Status:     string(v.Status),
			CheckinAt:  v.CheckinAt,
			CheckoutAt: v.CheckoutAt,
		}
		if vis, err := a.deps.Visitors.GetVisitor(ctx, v.VisitorID); err == nil {
			row.VisitorName = vis.FullName
			row.VisitorEmail = vis.Email
			row.Company = vis.Company
		}
		if host, err := a.deps.Directory.GetEmployee(ctx, v.HostEmployeeID); err == nil {
			row.Host = host.FullName
		}
		if branch, err := a.deps.Directory.GetBranch(ctx, v.BranchID); err == nil {
			row.Branch = branch.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

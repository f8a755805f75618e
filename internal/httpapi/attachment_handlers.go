package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"gatehouse.io/internal/attachment"
	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/obs"
)

// maxUploadBytes caps a single attachment; the outer MaxBodyBytes already
// bounds the whole request.
const maxUploadBytes = 8 << 20

// handleAttachmentUpload accepts one multipart file from the kiosk and binds
// it to a visit still collecting its profile.
func (a *API) handleAttachmentUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Blobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "attachment storage is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	visitID := strings.TrimSpace(r.FormValue("visit_id"))
	kind := attachment.Type(strings.TrimSpace(r.FormValue("type")))
	if visitID == "" {
		writeError(w, r, http.StatusBadRequest, "visit_id is required")
		return
	}
	// Reject a bad type tag before any bytes reach blob storage.
	if !attachment.ValidType(kind) {
		writeError(w, r, http.StatusBadRequest, "type must be VISITOR_PHOTO, ID_PHOTO or DOCUMENT")
		return
	}

	v, err := a.deps.Visits.Get(r.Context(), visitID)
	if err != nil {
		handleVisitError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	key := attachment.ObjectKey(v.ID, header.Filename, time.Now().UTC())

	size, err := a.deps.Blobs.Put(r.Context(), key, contentType, file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to store file")
		return
	}

	att, err := a.deps.Attachments.CreateAttachment(r.Context(), attachment.CreateParams{
		OrganizationID: v.OrganizationID,
		VisitID:        v.ID,
		VisitorID:      v.VisitorID,
		Type:           kind,
		StoragePath:    key,
		ContentType:    contentType,
		SizeBytes:      size,
	})
	if err != nil {
		if errors.Is(err, attachment.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "attachment.uploaded", map[string]any{
		"attachment_id": att.ID,
		"visit_id":      att.VisitID,
		"type":          string(att.Type),
		"size_bytes":    att.SizeBytes,
	})

	writeJSON(w, http.StatusCreated, att)
}

// handleAttachmentDownload streams one stored blob back to staff.
func (a *API) handleAttachmentDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := requireActor(w, r, auth.ActorAdmin, auth.ActorSecurity)
	if !ok {
		return
	}
	if a.deps.Blobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "attachment storage is not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/attachments/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	att, err := a.deps.Attachments.GetAttachment(r.Context(), id)
	if err != nil || !sameOrg(actor, att.OrganizationID) {
		writeError(w, r, http.StatusNotFound, attachment.ErrNotFound.Error())
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(att.StoragePath)))
	if err := a.deps.Blobs.Get(r.Context(), att.StoragePath, w); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		obs.LogRequest(map[string]any{
			"level":         "error",
			"msg":           "attachment_stream_failed",
			"attachment_id": att.ID,
			"error":         err.Error(),
		})
	}
}

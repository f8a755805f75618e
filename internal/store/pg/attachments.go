package pg

import (
	"context"
	"database/sql"

	"gatehouse.io/internal/attachment"
	"gatehouse.io/internal/ids"
)

func (s *Store) CreateAttachment(ctx context.Context, p attachment.CreateParams) (attachment.Attachment, error) {
	if p.OrganizationID == "" || p.VisitID == "" || p.VisitorID == "" || p.StoragePath == "" {
		return attachment.Attachment{}, attachment.ErrInvalidInput
	}
	switch p.Type {
	case attachment.TypeVisitorPhoto, attachment.TypeIDPhoto, attachment.TypeDocument:
	default:
		return attachment.Attachment{}, attachment.ErrInvalidInput
	}

	a := attachment.Attachment{
		ID:             ids.New(),
		OrganizationID: p.OrganizationID,
		VisitID:        p.VisitID,
		VisitorID:      p.VisitorID,
		Type:           p.Type,
		StoragePath:    p.StoragePath,
		ContentType:    p.ContentType,
		SizeBytes:      p.SizeBytes,
		CreatedAt:      s.now(),
	}
	_, err := s.db.ExecContext(ctx, `
		insert into attachments(id, organization_id, visit_id, visitor_id, type, storage_path, content_type, size_bytes, created_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8,$9)
	`, a.ID, a.OrganizationID, a.VisitID, a.VisitorID, string(a.Type), a.StoragePath, a.ContentType, a.SizeBytes, a.CreatedAt)
	if err != nil {
		return attachment.Attachment{}, err
	}
	return a, nil
}

func (s *Store) GetAttachment(ctx context.Context, id string) (attachment.Attachment, error) {
	var a attachment.Attachment
	var typ string
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, visit_id, visitor_id, type, storage_path, coalesce(content_type,''), size_bytes, created_at
		from attachments
		where id=$1
	`, id).Scan(&a.ID, &a.OrganizationID, &a.VisitID, &a.VisitorID, &typ, &a.StoragePath, &a.ContentType, &a.SizeBytes, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return attachment.Attachment{}, attachment.ErrNotFound
	}
	if err != nil {
		return attachment.Attachment{}, err
	}
	a.Type = attachment.Type(typ)
	return a, nil
}

func (s *Store) ListByVisit(ctx context.Context, visitID string) ([]attachment.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, visit_id, visitor_id, type, storage_path, coalesce(content_type,''), size_bytes, created_at
		from attachments
		where visit_id=$1
		order by created_at asc
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]attachment.Attachment, 0)
	for rows.Next() {
		var a attachment.Attachment
		var typ string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.VisitID, &a.VisitorID, &typ, &a.StoragePath, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = attachment.Type(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

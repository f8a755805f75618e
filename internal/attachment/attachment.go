package attachment

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"gatehouse.io/internal/ids"
)

var (
	ErrNotFound     = errors.New("attachment: not found")
	ErrInvalidInput = errors.New("attachment: invalid input")
)

// Type tags what an uploaded file is.
type Type string

const (
	TypeVisitorPhoto Type = "VISITOR_PHOTO"
	TypeIDPhoto      Type = "ID_PHOTO"
	TypeDocument     Type = "DOCUMENT"
)

// ValidType reports whether t is a known upload tag. Handlers check this
// before any blob write so a bad tag never strands bytes in storage.
func ValidType(t Type) bool {
	switch t {
	case TypeVisitorPhoto, TypeIDPhoto, TypeDocument:
		return true
	}
	return false
}

// Attachment binds one stored blob to a visit/visitor pair. Rows are created
// on upload and never updated.
type Attachment struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	VisitID        string    `json:"visit_id"`
	VisitorID      string    `json:"visitor_id"`
	Type           Type      `json:"type"`
	StoragePath    string    `json:"storage_path"`
	ContentType    string    `json:"content_type,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateParams carries one upload's metadata; the blob itself goes through
// BlobStorage first.
type CreateParams struct {
	OrganizationID string
	VisitID        string
	VisitorID      string
	Type           Type
	StoragePath    string
	ContentType    string
	SizeBytes      int64
}

// Store persists attachment records.
type Store interface {
	CreateAttachment(ctx context.Context, p CreateParams) (Attachment, error)
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	ListByVisit(ctx context.Context, visitID string) ([]Attachment, error)
}

// ObjectKey builds the storage path for one upload:
// <visit_id>/<unix-millis>.<ext>.
func ObjectKey(visitID, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d%s", visitID, now.UnixMilli(), ext)
}

func validate(p CreateParams) error {
	switch {
	case p.OrganizationID == "":
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	case p.VisitID == "":
		return fmt.Errorf("%w: visit_id required", ErrInvalidInput)
	case p.VisitorID == "":
		return fmt.Errorf("%w: visitor_id required", ErrInvalidInput)
	case !ValidType(p.Type):
		return fmt.Errorf("%w: type must be VISITOR_PHOTO, ID_PHOTO or DOCUMENT", ErrInvalidInput)
	case p.StoragePath == "":
		return fmt.Errorf("%w: storage_path required", ErrInvalidInput)
	}
	return nil
}

// InMemoryStore implements Store behind a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	byVisit map[string][]Attachment
	byID    map[string]Attachment
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byVisit: make(map[string][]Attachment),
		byID:    make(map[string]Attachment),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) CreateAttachment(ctx context.Context, p CreateParams) (Attachment, error) {
	if err := validate(p); err != nil {
		return Attachment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Attachment{
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
	s.byVisit[p.VisitID] = append(s.byVisit[p.VisitID], a)
	s.byID[a.ID] = a
	return a, nil
}

func (s *InMemoryStore) GetAttachment(ctx context.Context, id string) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) ListByVisit(ctx context.Context, visitID string) ([]Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.byVisit[visitID]
	out := make([]Attachment, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

package attachment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStorage persists attachment bytes. Keys follow ObjectKey's
// <visit_id>/<millis>.<ext> layout on every backend.
type BlobStorage interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string, w io.Writer) error
}

// DiskStorage writes blobs under a local root directory. Default backend for
// development and single-node deployments.
type DiskStorage struct {
	root string
}

func NewDiskStorage(root string) (*DiskStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("attachment: storage root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("attachment: create storage root: %w", err)
	}
	return &DiskStorage{root: root}, nil
}

// resolve rejects keys that would escape the root.
func (d *DiskStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: bad storage key %q", ErrInvalidInput, key)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *DiskStorage) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	p, err := d.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("attachment: mkdir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, fmt.Errorf("attachment: create %s: %w", key, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("attachment: write %s: %w", key, err)
	}
	return n, nil
}

func (d *DiskStorage) Get(ctx context.Context, key string, w io.Writer) error {
	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("attachment: open %s: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("attachment: read %s: %w", key, err)
	}
	return nil
}

// Package evidence stores close-out photos and hands back the reference
// recorded on the closing STOP event.
package evidence

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RefPrefix starts every reference handed out by DirStore
const RefPrefix = "evidence/"

// Uploader stores a blob and returns a stable reference to it. Callers keep
// the reference verbatim and never check that it resolves.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// DirStore keeps evidence as files under a directory
type DirStore struct {
	dir     string
	maxSize int64
}

// NewDirStore returns a DirStore rooted at dir. maxSize <= 0 disables the
// size limit.
func NewDirStore(dir string, maxSize int64) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("evidence: directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("evidence: create %s: %w", dir, err)
	}
	return &DirStore{dir: dir, maxSize: maxSize}, nil
}

// Upload writes r to <uuid><ext> and returns "evidence/<uuid><ext>"
func (s *DirStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.New().String() + strings.ToLower(filepath.Ext(filepath.Base(filename)))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("evidence: upload %s: %w", filename, err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("evidence: upload %s: %w", filename, err)
	}
	if n == 0 {
		return "", fmt.Errorf("evidence: upload %s: empty file", filename)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return "", fmt.Errorf("evidence: upload %s: larger than %d bytes", filename, s.maxSize)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("evidence: upload %s: %w", filename, err)
	}
	return RefPrefix + name, nil
}

// Path resolves a reference from this store to a file path
func (s *DirStore) Path(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("evidence: %q is not a stored reference", ref)
	}
	return filepath.Join(s.dir, name), nil
}

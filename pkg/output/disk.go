package output

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes documents to a file. The file is replaced atomically.
type DiskStore struct {
	path    string
	maxSize int64
}

// NewDiskStore creates a new DiskStore.
//
// Parameters:
//   - path: File to write; missing directories are created
//   - maxSize: Maximum document size in bytes (0 = no limit)
func NewDiskStore(path string, maxSize int64) *DiskStore {
	return &DiskStore{path: path, maxSize: maxSize}
}

func (s *DiskStore) Save(_ context.Context, _ string, r io.Reader) (string, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, ".vbridge-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if s.maxSize > 0 && written > s.maxSize {
		return "", ErrTooLarge
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return "", err
	}
	return s.path, nil
}

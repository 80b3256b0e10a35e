package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FS stores blobs as files under a base directory.
type FS struct {
	base string
}

var _ Store = (*FS)(nil)

// NewFS creates a filesystem store rooted at base, creating the directory if
// needed.
func NewFS(base string) (*FS, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FS{base: abs}, nil
}

// path resolves key inside the base directory, rejecting traversal.
func (f *FS) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(f.base, clean), nil
}

func (f *FS) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (f *FS) Open(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := f.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(src)
}

func (f *FS) Delete(_ context.Context, key string) error {
	src, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

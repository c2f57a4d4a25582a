package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirStore is an ArtifactStore rooted at a local directory. It is meant
// for tests and local development against an in-process fake service.
type DirStore struct {
	root string
}

// NewDirStore creates a directory-backed artifact store.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &DirStore{root: root}, nil
}

// Upload copies the file at path under key below the store root.
func (d *DirStore) Upload(_ context.Context, key, path string) error {
	dest := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return copyLocal(path, dest)
}

// Download copies the object under key to destPath.
func (d *DirStore) Download(_ context.Context, key, destPath string) error {
	src := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return copyLocal(src, destPath)
}

func copyLocal(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

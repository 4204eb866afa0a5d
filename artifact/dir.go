package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirStore copies artifacts into a local directory tree, one subdirectory
// per run.
type DirStore struct {
	Root string
}

// NewDirStore creates a DirStore rooted at root.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact dir store: root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact root %s: %w", root, err)
	}
	return &DirStore{Root: root}, nil
}

func (s *DirStore) Put(ctx context.Context, runID, name, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening artifact %s: %w", name, err)
	}
	defer src.Close()

	destDir := filepath.Join(s.Root, runID)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating run artifact dir: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating stored artifact %s: %w", name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copying artifact %s: %w", name, err)
	}
	return dest, nil
}

// Package storage provides host-process backends for the capability
// interfaces the verification core depends on: filesystem/S3/GCS-backed
// ByteSource implementations for reading pack and proof documents, and
// SQL/Redis-backed CredentialStore and ChallengeStore implementations for
// online verification. The core itself never imports this package; only a
// CLI or daemon wrapper wires a concrete backend in.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSource is a ByteSource backed by a local directory.
type FileSource struct {
	Root string
}

func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root}
}

func (f *FileSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(f.Root, path))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return b, nil
}

func (f *FileSource) ListFiles(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.Root, dir))
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_ReadAndList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "receipts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipts", "a.json"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipts", "b.json"), []byte(`{"b":2}`), 0o644))

	src := NewFileSource(dir)
	ctx := context.Background()

	b, err := src.ReadFile(ctx, "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	files, err := src.ListFiles(ctx, "receipts")
	require.NoError(t, err)
	sort.Strings(files)
	assert.Equal(t, []string{filepath.Join("receipts", "a.json"), filepath.Join("receipts", "b.json")}, files)
}

func TestFileSource_ReadFile_Missing(t *testing.T) {
	src := NewFileSource(t.TempDir())
	_, err := src.ReadFile(context.Background(), "nope.json")
	assert.Error(t, err)
}

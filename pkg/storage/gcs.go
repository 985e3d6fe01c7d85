//go:build gcp

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSSource is a ByteSource backed by Google Cloud Storage. Built only when
// the gcp build tag is set; S3Source has no build tag and is always built.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
}

type GCSSourceConfig struct {
	Bucket string
	Prefix string
}

func NewGCSSource(ctx context.Context, cfg GCSSourceConfig) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: new gcs client: %w", err)
	}
	return &GCSSource{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (g *GCSSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.prefix + path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs read %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (g *GCSSource) ListFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := g.prefix + dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: gcs list %s: %w", dir, err)
		}
		out = append(out, strings.TrimPrefix(attrs.Name, g.prefix))
	}
	return out, nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source is a ByteSource backed by an S3-compatible object store, keyed by
// a prefix plus the path passed to ReadFile/ListFiles verbatim so a pack
// directory's relative layout (manifest.json, receipts/<id>.json, ...) maps
// directly onto object keys.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

type S3SourceConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO/LocalStack compatibility
	Prefix   string
}

func NewS3Source(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Source) key(path string) string {
	return s.prefix + path
}

func (s *S3Source) ReadFile(ctx context.Context, path string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 get %s: %w", path, err)
	}
	defer func() { _ = result.Body.Close() }()
	return io.ReadAll(result.Body)
}

func (s *S3Source) ListFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := s.key(dir)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var out []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			out = append(out, strings.TrimPrefix(key, s.prefix))
		}
	}
	return out, nil
}

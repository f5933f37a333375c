package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Backend stores keys as objects in a bucket on any S3-compatible object
// store, using github.com/minio/minio-go/v7 — adopted from the example
// pack's dependency surface for exactly this role.
type S3Backend struct {
	client *minio.Client
	bucket string
}

// S3Config configures [NewS3Backend].
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// NewS3Backend connects to an S3-compatible endpoint and ensures the target
// bucket exists.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("persistence: check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("persistence: create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Backend) Name() string { return "s3" }

func (s *S3Backend) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("persistence: s3 put %q: %w", key, err)
	}
	return nil
}

func (s *S3Backend) Read(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("persistence: s3 get %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("persistence: s3 read body %q: %w", key, err)
	}
	return data, true, nil
}

func (s *S3Backend) Probe(ctx context.Context) time.Duration {
	start := time.Now()
	_, _ = s.client.BucketExists(ctx, s.bucket)
	return time.Since(start)
}

func (s *S3Backend) Close() error { return nil }

// Package s3 implements the storage Backend for AWS S3 and S3-compatible
// object stores (MinIO, etc).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/evidrop/evidrop/internal/storage"
)

// multipartPartSize is the part size for S3 multipart uploads (5MB minimum).
const multipartPartSize = 5 * 1024 * 1024

// Config holds the settings needed to reach a bucket.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// Storage implements storage.Backend on top of an S3 bucket.
type Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// New creates a Storage and verifies bucket access with a HEAD request.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFuncs = append(optFuncs, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartPartSize
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &Storage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
	}, nil
}

// validateKey rejects names that would escape the bucket namespace.
func validateKey(name string) error {
	if name == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(name, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(name, "..") || strings.Contains(name, "/") {
		return fmt.Errorf("invalid key: %s", name)
	}
	return nil
}

// Store uploads an artifact using the multipart uploader so large assembled
// files stream without buffering in memory.
func (s *Storage) Store(ctx context.Context, name string, reader io.Reader, size int64) error {
	if err := validateKey(name); err != nil {
		return storage.NewError("Store", name, err)
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   reader,
	})
	if err != nil {
		return storage.NewError("Store", name, err)
	}

	slog.Debug("stored artifact in S3", "key", name, "size", size)
	return nil
}

// Retrieve returns a reader for the stored artifact.
func (s *Storage) Retrieve(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateKey(name); err != nil {
		return nil, storage.NewError("Retrieve", name, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.NewError("Retrieve", name, fmt.Errorf("artifact not found"))
		}
		return nil, storage.NewError("Retrieve", name, err)
	}

	return out.Body, nil
}

// Delete removes the artifact. Deleting a missing object is not an error;
// S3 DeleteObject is idempotent.
func (s *Storage) Delete(ctx context.Context, name string) error {
	if err := validateKey(name); err != nil {
		return storage.NewError("Delete", name, err)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return storage.NewError("Delete", name, err)
	}
	return nil
}

// Exists checks for the artifact with a HEAD request.
func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateKey(name); err != nil {
		return false, storage.NewError("Exists", name, err)
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, storage.NewError("Exists", name, err)
	}
	return true, nil
}

// Size returns the object length from a HEAD request.
func (s *Storage) Size(ctx context.Context, name string) (int64, error) {
	if err := validateKey(name); err != nil {
		return 0, storage.NewError("Size", name, err)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, storage.NewError("Size", name, fmt.Errorf("artifact not found"))
		}
		return 0, storage.NewError("Size", name, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

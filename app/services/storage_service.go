package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Storage service error constants
var (
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStorage abstracts the blob store holding uploaded document files.
// The retention sweeper uses it to remove the underlying file when an
// orphaned document row is purged.
type ObjectStorage interface {
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// S3StorageConfig holds connection settings for the S3-compatible blob store
type S3StorageConfig struct {
	Region          string
	Endpoint        string // optional, set for S3-compatible stores
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Storage implements ObjectStorage against AWS S3 or a compatible store
type S3Storage struct {
	client *s3.Client
	bucket string
}

// NewS3Storage builds the S3 client from static credentials. A custom
// endpoint switches the client to path-style addressing, which
// S3-compatible stores generally require.
func NewS3Storage(ctx context.Context, cfg S3StorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client, bucket: cfg.Bucket}, nil
}

// DeleteObject removes one object. Deleting a missing key is not an error.
func (s *S3Storage) DeleteObject(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// DeleteObjects removes a batch of objects, stopping at the first failure
func (s *S3Storage) DeleteObjects(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.DeleteObject(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ObjectExists reports whether the key is present in the bucket
func (s *S3Storage) ObjectExists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimPrefix(key, "/")
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

// MemoryStorage is an in-memory ObjectStorage used by tests and local runs
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]struct{}
	Deleted []string
}

func NewMemoryStorage(keys ...string) *MemoryStorage {
	m := &MemoryStorage{objects: make(map[string]struct{})}
	for _, k := range keys {
		m.objects[k] = struct{}{}
	}
	return m
}

func (m *MemoryStorage) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

func (m *MemoryStorage) DeleteObjects(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := m.DeleteObject(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

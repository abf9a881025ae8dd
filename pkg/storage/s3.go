package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store stores each key as one JSON object in an S3 bucket.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-central-1", Credentials: creds})
//	store := storage.NewS3Store(client, "my-bucket", storage.WithS3Prefix("state/"))
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// S3StoreOption configures S3Store behavior.
type S3StoreOption func(*S3Store)

// WithS3Prefix sets the object key prefix.
// Default: "statesync/".
func WithS3Prefix(prefix string) S3StoreOption {
	return func(s *S3Store) {
		s.prefix = prefix
	}
}

// NewS3Store creates a new S3-backed store.
func NewS3Store(client S3API, bucket string, opts ...S3StoreOption) *S3Store {
	s := &S3Store{
		client: client,
		bucket: bucket,
		prefix: "statesync/",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key + ".json"
}

// Get returns the text stored under key.
func (s *S3Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrStoreClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("s3 get failed: %w", err)
	}
	defer out.Body.Close()

	var b strings.Builder
	if _, err := io.Copy(&b, out.Body); err != nil {
		return "", false, fmt.Errorf("s3 read failed: %w", err)
	}
	return b.String(), true, nil
}

// Set replaces the object stored under key.
func (s *S3Store) Set(ctx context.Context, key, text string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader([]byte(text)),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"state-key": key,
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// Remove deletes the object stored under key. S3 does not report missing
// objects on delete.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// Close marks the store closed. The client is owned by the caller.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}

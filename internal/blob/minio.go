// Package blob wraps the object store behind the three operations the
// image pipeline needs: existence probe, put, and public URL derivation.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrAuth marks credential failures against the object store. They are
// configuration errors and fatal to the whole run, unlike per-image
// fetch or upload failures.
var ErrAuth = errors.New("object store authentication failed")

type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error)
	PublicURL(key string) string
	Ping(ctx context.Context) error
}

// MinioStore implements Store against an S3-compatible endpoint.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStore(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Exists probes for an object at key. Only the key is checked, never the
// content: the content-addressed key is trusted.
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return false, nil
	}
	if isAuthCode(resp.Code) {
		return false, fmt.Errorf("%w: stat %s: %v", ErrAuth, key, err)
	}
	return false, fmt.Errorf("stat object %s: %w", key, err)
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		if isAuthCode(minio.ToErrorResponse(err).Code) {
			return "", fmt.Errorf("%w: put %s: %v", ErrAuth, key, err)
		}
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL derives the object's public URL from the configured base.
// No round trip is needed.
func (s *MinioStore) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func isAuthCode(code string) bool {
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return false
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ObjectStore persists generated artifacts and serves them back. Put returns
// a durable URL the rest of the system treats as opaque.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, objectURL string) ([]byte, error)
}

// MinioStore is the production ObjectStore backed by a MinIO/S3 bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore wraps an initialized MinIO client. baseURL is the public
// prefix under which bucket objects are reachable.
func NewMinioStore(client *minio.Client, bucket, baseURL string) (*MinioStore, error) {
	if client == nil {
		return nil, errors.New("storage: minio client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if baseURL == "" {
		baseURL = client.EndpointURL().String() + "/" + bucket
	}
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleanKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	return s.baseURL + "/" + cleanKey, nil
}

func (s *MinioStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("storage: read object: %w", err)
	}
	return data, nil
}

// keyFromURL strips the public prefix to recover the object key. URLs from a
// different prefix are rejected rather than guessed at.
func (s *MinioStore) keyFromURL(objectURL string) (string, error) {
	if strings.HasPrefix(objectURL, s.baseURL+"/") {
		return strings.TrimPrefix(objectURL, s.baseURL+"/"), nil
	}
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("storage: invalid object url: %w", err)
	}
	path := strings.TrimLeft(parsed.Path, "/")
	if strings.HasPrefix(path, s.bucket+"/") {
		return strings.TrimPrefix(path, s.bucket+"/"), nil
	}
	return "", fmt.Errorf("storage: url %q outside bucket %q", objectURL, s.bucket)
}

var _ ObjectStore = (*MinioStore)(nil)

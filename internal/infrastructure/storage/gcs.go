package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"

	"github.com/jhoicas/nfe-emissor/internal/domain"
)

// GCSAPI operaciones de objeto usadas por el store. Un objeto inexistente se informa con
// gcs.ErrObjectNotExist, como en el cliente real.
type GCSAPI interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Close() error
}

type gcsClient struct {
	c *gcs.Client
}

func (g gcsClient) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := g.c.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (g gcsClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return g.c.Bucket(bucket).Object(object).NewReader(ctx)
}

func (g gcsClient) Close() error { return g.c.Close() }

// GCSStore guarda artefactos en un bucket de Cloud Storage.
type GCSStore struct {
	client GCSAPI
	bucket string
	prefix string
}

// NewGCSStore usa Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: bucket GCS obligatorio")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: crear cliente GCS: %w", err)
	}
	return NewGCSStoreWithClient(gcsClient{c: client}, bucket, prefix), nil
}

// NewGCSStoreWithClient permite inyectar el cliente (tests, emulador).
func NewGCSStoreWithClient(client GCSAPI, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	objectKey := withPrefix(s.prefix, k)
	w := s.client.NewWriter(ctx, s.bucket, objectKey, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: gcs escribir %s: %w", objectKey, err)
	}
	// En GCS el objeto se confirma al cerrar el writer.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: gcs cerrar %s: %w", objectKey, err)
	}
	return "gs://" + s.bucket + "/" + objectKey, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	objectKey := withPrefix(s.prefix, k)
	r, err := s.client.NewReader(ctx, s.bucket, objectKey)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, objectKey)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: gcs leer %s: %w", objectKey, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs leer %s: %w", objectKey, err)
	}
	return data, nil
}

// Close libera el cliente GCS.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"sealdeal-backend/internal/shared/storage/object"
)

// Store implements ObjectStore on a Cloud Storage bucket using ADC.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a Cloud Storage backed store.
func New(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Put writes r to the object. The object becomes visible only when the writer closes.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return 0, err
	}
	w := s.client.Bucket(s.bucket).Object(clean).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gcs write bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("gcs close bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return n, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(clean).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return rc, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ object.ObjectStore = (*Store)(nil)

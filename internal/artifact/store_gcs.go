package artifact

import (
	"context"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// GCSStore implements Store using Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS-backed artifact Store.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSStore(ctx context.Context, bucket, keyPrefix string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(keyPrefix, "/")}, nil
}

func (s *GCSStore) key(filename string) string {
	if s.prefix == "" {
		return filename
	}
	return s.prefix + "/" + filename
}

// Upload writes one raster and returns its public object URL.
func (s *GCSStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	key := s.key(filename)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "image/png"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

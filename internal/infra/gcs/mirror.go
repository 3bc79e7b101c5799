// Package gcs mirrors attachment provenance records into a Cloud Storage
// bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// Mirror writes attachment records under a fixed bucket. Objects are written
// once and never overwritten; Exists gates every Write.
type Mirror struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
}

// NewMirror builds a mirror over an owned client. Close releases it.
func NewMirror(ctx context.Context, bucket string, log zerolog.Logger) (*Mirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: storage client: %w", err)
	}
	return &Mirror{client: client, bucket: bucket, log: log}, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

// Exists reports whether an object is already present at path.
func (m *Mirror) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.client.Bucket(m.bucket).Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gcs: stat %s: %w", path, err)
	}
	return true, nil
}

// Write stores data at path.
func (m *Mirror) Write(ctx context.Context, path string, data []byte) error {
	w := m.client.Bucket(m.bucket).Object(path).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: close %s: %w", path, err)
	}
	m.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("attachment record mirrored")
	return nil
}

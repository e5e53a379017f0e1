package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forum-sync/models"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
)

// Sink is a destination for the serialized snapshot.
type Sink interface {
	Write(ctx context.Context, data []byte) error
	Location() string
}

// FileSink writes the snapshot to a local file. The previous file is replaced
// atomically: readers see either the old or the new snapshot, never a partial one.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Location returns the target path.
func (s *FileSink) Location() string {
	return s.Path
}

// Write stores data in a temporary file next to the target and renames it
// into place.
func (s *FileSink) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

// GCSSink uploads the snapshot to a Cloud Storage object.
type GCSSink struct {
	client   *storage.Client
	bucket   string
	object   string
	attempts uint
	log      zerolog.Logger
}

// NewGCSSink returns a sink writing to gs://bucket/object.
func NewGCSSink(client *storage.Client, bucket, object string, log zerolog.Logger) *GCSSink {
	return &GCSSink{
		client:   client,
		bucket:   bucket,
		object:   object,
		attempts: 5,
		log:      log,
	}
}

// Location returns the gs:// URL of the object.
func (s *GCSSink) Location() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Write uploads data, retrying transient failures.
func (s *GCSSink) Write(ctx context.Context, data []byte) error {
	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
			w.ContentType = "application/json; charset=utf-8"
			w.CacheControl = "no-cache"

			if _, err := w.Write(data); err != nil {
				w.Close()
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retry.Attempts(s.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn().Uint("attempt", n).Err(err).Str("object", s.Location()).Msg("Retrying snapshot upload")
		}),
	)
	if err != nil {
		return fmt.Errorf("upload %s after retries: %w", s.Location(), err)
	}
	return nil
}

// Write serializes posts once and hands the bytes to every sink in order.
// The first failing sink aborts the write.
func Write(ctx context.Context, posts []models.Post, sinks ...Sink) error {
	data, err := Marshal(posts)
	if err != nil {
		return err
	}
	for _, sink := range sinks {
		if err := sink.Write(ctx, data); err != nil {
			return fmt.Errorf("failed to write snapshot to %s: %w", sink.Location(), err)
		}
	}
	return nil
}

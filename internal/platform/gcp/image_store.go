package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

// ImageStore holds user-uploaded review images.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Close() error
}

type imageStore struct {
	log    *logger.Logger
	client *storage.Client
	cfg    StorageConfig
}

func NewImageStore(ctx context.Context, log *logger.Logger, cfg StorageConfig) (ImageStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("REVIEW_IMAGE_BUCKET is not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	storeLog := log.With("service", "ImageStore")
	storeLog.Info("Object storage initialized", "mode", cfg.Mode, "bucket", cfg.Bucket, "emulator_host", cfg.EmulatorHost)
	return &imageStore{log: storeLog, client: client, cfg: cfg}, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		// the storage client picks the emulator up from the environment
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
	}
	return storage.NewClient(ctx, cfg.clientOptions()...)
}

func (s *imageStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	if ct := ContentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object writer %q: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *imageStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	key = cleanKey(key)
	if err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q in bucket %q: %w", key, s.cfg.Bucket, err)
	}
	return nil
}

func (s *imageStore) PublicURL(key string) string { return publicURL(s.cfg, key) }

func (s *imageStore) Close() error { return s.client.Close() }

func publicURL(cfg StorageConfig, key string) string {
	key = cleanKey(key)
	switch {
	case cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", cfg.CDNDomain, key)
	case cfg.IsEmulator():
		base := cfg.PublicBaseURL
		if base == "" {
			base = cfg.EmulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(cfg.Bucket), url.PathEscape(key))
	case cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", cfg.PublicBaseURL, cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.Bucket, key)
	}
}

func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// ContentTypeForKey maps an image file extension to its MIME type, or "" when
// the extension is not an accepted image type.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

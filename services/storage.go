package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage holds the blobs of the queue: originals, compressed and boosted
// outputs, and thumbnails.
type Storage interface {
	// Save stores the content under key (relative path, e.g. "originals/<id>.png")
	// and returns a URL for it.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Should not error if the object does not exist.
	Delete(ctx context.Context, key string) error
	// PublicURL builds a public URL for a given key.
	PublicURL(key string) string
	// IsLocal indicates whether this storage writes to local filesystem.
	IsLocal() bool
}

// ReadAll loads a whole object into memory.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// SaveBytes is Save for in-memory content.
func SaveBytes(ctx context.Context, s Storage, key string, data []byte, contentType string) (string, error) {
	return s.Save(ctx, key, bytes.NewReader(data), contentType)
}

// ----- Local storage implementation -----

type LocalStorage struct {
	baseDir    string // e.g. "uploads"
	publicBase string // e.g. "/uploads"
}

func NewLocalStorage(baseDir string) *LocalStorage {
	if baseDir == "" {
		baseDir = "uploads"
	}
	return &LocalStorage{baseDir: baseDir, publicBase: "/uploads"}
}

// Dir is the directory blobs are written under.
func (s *LocalStorage) Dir() string { return s.baseDir }

func (s *LocalStorage) path(key string) (string, error) {
	key = filepath.ToSlash(key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimPrefix(key, "/"))), nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	dstPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func (s *LocalStorage) PublicURL(key string) string {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	return s.publicBase + "/" + key
}

func (s *LocalStorage) IsLocal() bool { return true }

// ----- S3 (R2-compatible) configuration -----

type S3Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Bucket         string
	Prefix         string
	ForcePathStyle bool
	PublicBaseURL  string
}

// buildS3Storage is optionally provided by an s3-enabled build (see storage_s3.go).
var buildS3Storage func(S3Config) (Storage, error)

// NewStorageFromEnv builds S3/R2 storage when STORAGE_PROVIDER asks for it and
// the bucket is fully configured, local storage under UPLOADS_DIR otherwise.
func NewStorageFromEnv() (Storage, error) {
	provider := os.Getenv("STORAGE_PROVIDER")
	if strings.EqualFold(provider, "s3") || strings.EqualFold(provider, "r2") {
		cfg := S3Config{
			Endpoint:       firstNonEmpty(os.Getenv("S3_ENDPOINT"), os.Getenv("R2_ENDPOINT")),
			AccessKey:      firstNonEmpty(os.Getenv("S3_ACCESS_KEY_ID"), os.Getenv("R2_ACCESS_KEY_ID")),
			SecretKey:      firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("R2_SECRET_ACCESS_KEY")),
			UseSSL:         true,
			Bucket:         firstNonEmpty(os.Getenv("S3_BUCKET"), os.Getenv("R2_BUCKET")),
			Prefix:         os.Getenv("S3_PREFIX"),
			ForcePathStyle: !strings.EqualFold(os.Getenv("S3_FORCE_PATH_STYLE"), "false"),
			PublicBaseURL:  os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		}
		if buildS3Storage == nil {
			return nil, errors.New("s3 storage is not available in this build")
		}
		return buildS3Storage(cfg)
	}
	return NewLocalStorage(os.Getenv("UPLOADS_DIR")), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	s3SaveTimeout   = 30 * time.Second
	s3DeleteTimeout = 15 * time.Second
)

// s3Storage keeps queue blobs in an S3-compatible bucket (incl. R2), under
// an optional key prefix so several deployments can share one bucket.
type s3Storage struct {
	client        *minio.Client
	bucket        string
	prefix        string
	publicBaseURL string
	forcePath     bool
}

func newS3Storage(cfg S3Config) (Storage, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("incomplete S3 config")
	}
	endpoint, useSSL := cfg.Endpoint, cfg.UseSSL
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       useSSL,
		Region:       "auto",
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, err
	}
	return &s3Storage{
		client:        cli,
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		forcePath:     cfg.ForcePathStyle,
	}, nil
}

func (s *s3Storage) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// bounded gives ctx a deadline when the caller did not set one.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (s *s3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := bounded(ctx, s3SaveTimeout)
	defer cancel()

	var size int64 = -1
	if br, ok := r.(*bytes.Reader); ok {
		size = int64(br.Len())
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=3600",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Open reports a missing object as fs.ErrNotExist, like LocalStorage.
func (s *s3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
		}
		return nil, err
	}
	return obj, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	ctx, cancel := bounded(ctx, s3DeleteTimeout)
	defer cancel()
	return s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{})
}

func (s *s3Storage) PublicURL(key string) string {
	key = s.objectKey(key)
	if s.publicBaseURL != "" {
		base := s.publicBaseURL
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			base = "https://" + base
		}
		return base + "/" + key
	}
	u := url.URL{Scheme: "https"}
	if s.forcePath {
		u.Host = s.client.EndpointURL().Host
		u.Path = "/" + s.bucket + "/" + key
	} else {
		u.Host = s.bucket + "." + s.client.EndpointURL().Host
		u.Path = "/" + key
	}
	return u.String()
}

func (s *s3Storage) IsLocal() bool { return false }

func init() {
	buildS3Storage = newS3Storage
}

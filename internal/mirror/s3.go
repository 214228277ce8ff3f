// Package mirror copies deploy archives to S3-compatible object storage.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mgeovany/hoist/internal/archive"
	"github.com/mgeovany/hoist/internal/config"
)

const (
	defaultRegion = "us-east-1"
	keyPrefix     = "hoist/archives"
	putTimeout    = 2 * time.Minute
)

// S3 uploads archives to one bucket.
type S3 struct {
	client *minio.Client
	bucket string
}

// Credentials picks static keys from HOIST_ARCHIVE_ACCESS_KEY and
// HOIST_ARCHIVE_SECRET_KEY when both are set, and the AWS_* environment
// otherwise.
func Credentials(getenv func(string) string) *credentials.Credentials {
	access := strings.TrimSpace(getenv("HOIST_ARCHIVE_ACCESS_KEY"))
	secret := strings.TrimSpace(getenv("HOIST_ARCHIVE_SECRET_KEY"))
	if access != "" && secret != "" {
		return credentials.NewStaticV4(access, secret, strings.TrimSpace(getenv("HOIST_ARCHIVE_SESSION_TOKEN")))
	}
	return credentials.NewEnvAWS()
}

func New(cfg config.ArchiveMirror, creds *credentials.Credentials) (*S3, error) {
	if !cfg.Enabled() {
		return nil, errors.New("archive mirror requires HOIST_ARCHIVE_BUCKET and HOIST_ARCHIVE_ENDPOINT")
	}
	if creds == nil {
		creds = credentials.NewEnvAWS()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	// AWS: avoid the global endpoint when the bucket is regional.
	if endpoint == "s3.amazonaws.com" && region != defaultRegion {
		endpoint = "s3." + region + ".amazonaws.com"
	}
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive mirror: %w", err)
	}
	return &S3{client: c, bucket: strings.TrimSpace(cfg.Bucket)}, nil
}

// Key is the object name used for a.
func Key(a *archive.Archive) string {
	return path.Join(keyPrefix, filepath.Base(a.Path))
}

// Put streams the archive file to the bucket and returns its s3:// location.
func (s *S3) Put(ctx context.Context, a *archive.Archive) (string, error) {
	f, err := a.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	key := Key(a)
	if _, err := s.client.PutObject(ctx, s.bucket, key, f, a.Size, minio.PutObjectOptions{
		ContentType: "application/zip",
	}); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

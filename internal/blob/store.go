package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Object describes one stored object as seen by the reconciliation
// pipeline's discovery step.
type Object struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
	// UserMetadata carries upload-time context such as the original
	// filename and the uploading user.
	UserMetadata map[string]string
}

// OriginalFilename returns the uploader-supplied filename, if recorded.
func (o *Object) OriginalFilename() string {
	return o.UserMetadata[MetaOriginalFilename]
}

// UploadUserID returns the uploading user's ID, if recorded.
func (o *Object) UploadUserID() string {
	return o.UserMetadata[MetaUserID]
}

// Store provides bucket management, listing, stat, and fetch over MinIO.
type Store struct {
	client *minio.Client
	logger *slog.Logger
}

// NewStore connects to object storage. Unlike the analytics sink, blob
// storage is load-bearing for ingestion, so an unreachable endpoint is an
// error rather than a degraded mode.
func NewStore(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.secretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	return &Store{
		client: client,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// EnsureBuckets idempotently creates the platform buckets.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{BucketTracks, BucketCovers, BucketPlaylists, BucketTemp} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %q: %w", bucket, err)
		}

		if exists {
			continue
		}

		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}

		s.logger.Info("bucket created", slog.String("bucket", bucket))
	}

	return nil
}

// List streams all objects under a prefix. The returned slice is in lexical
// key order as produced by the server.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object

	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, info.Err)
		}

		objects = append(objects, Object{
			Bucket:       bucket,
			Key:          info.Key,
			Size:         info.Size,
			ETag:         info.ETag,
			LastModified: info.LastModified,
			ContentType:  info.ContentType,
		})
	}

	return objects, nil
}

// Stat fetches full object metadata, including user metadata, which the
// plain listing does not carry.
func (s *Store) Stat(ctx context.Context, bucket, key string) (*Object, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	return &Object{
		Bucket:       bucket,
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		UserMetadata: info.UserMetadata,
	}, nil
}

// Fetch opens an object for reading. The caller must close the reader.
func (s *Store) Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", bucket, key, err)
	}

	return obj, nil
}

// Remove deletes one object. Used by the prune step to clear expired
// objects from the temp bucket.
func (s *Store) Remove(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}

	return nil
}

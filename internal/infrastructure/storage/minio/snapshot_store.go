// Package minio archives registry snapshots in S3-compatible object
// storage.
package minio

import (
	"bytes"
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

const snapshotContentType = "application/json"

// SnapshotStore uploads and downloads registry snapshots as JSON objects.
// The object layout is identical to the filesystem snapshot file, so either
// source can restore the other's output.
type SnapshotStore struct {
	client *minio.Client
	bucket string
	log    logging.Logger
}

// NewSnapshotStore connects to the object store and ensures the configured
// bucket exists.
func NewSnapshotStore(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*SnapshotStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create object store client").
			WithDetail(cfg.Endpoint)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to check snapshot bucket").
			WithDetail(cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create snapshot bucket").
				WithDetail(cfg.Bucket)
		}
	}

	return &SnapshotStore{client: client, bucket: cfg.Bucket, log: log.Named("minio")}, nil
}

// Upload writes the registry's snapshot under object.
func (s *SnapshotStore) Upload(ctx context.Context, object string, registry *equivalence.Registry) error {
	var buf bytes.Buffer
	if err := registry.WriteSnapshot(&buf); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, object, &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: snapshotContentType})
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to upload snapshot").
			WithDetail(object)
	}
	s.log.Info("snapshot uploaded",
		logging.String("bucket", s.bucket), logging.String("object", object))
	return nil
}

// Download restores a frozen registry from the object.
func (s *SnapshotStore) Download(ctx context.Context, object string) (*equivalence.Registry, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to fetch snapshot").
			WithDetail(object)
	}
	defer obj.Close()

	registry, err := equivalence.ReadSnapshot(obj)
	if err != nil {
		if _, statErr := obj.Stat(); statErr != nil {
			return nil, errors.Wrap(statErr, errors.CodeStorageError, "failed to fetch snapshot").
				WithDetail(object)
		}
		return nil, err
	}
	return registry, nil
}

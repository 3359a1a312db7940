package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	imageContentType = "image/jpeg"
	minioNoSuchKey   = "NoSuchKey"
)

// MinIOConfig holds connection settings for an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	Region    string
}

type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIO stores blobs as objects in one bucket, optionally under a key prefix.
type MinIO struct {
	client objectAPI
	bucket string
	prefix string
}

var _ BlobStore = (*MinIO)(nil)

// NewMinIO connects to the configured endpoint and ensures the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", bucket, err)
		}
	}

	return newMinIOWithClient(client, bucket, cfg.Prefix), nil
}

func newMinIOWithClient(client objectAPI, bucket, prefix string) *MinIO {
	return &MinIO{client: client, bucket: bucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}
}

// Put uploads data as one object.
func (m *MinIO) Put(ctx context.Context, key string, data []byte) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := m.objectName(key)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: imageContentType,
	})
	return err
}

// Open returns a reader for an object. Missing objects report ErrNotFound.
func (m *MinIO) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := m.objectName(key)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return obj, nil
}

// Delete removes an object. Missing objects are ignored.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := m.objectName(key)
	if err != nil {
		return err
	}
	err = m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if code := minio.ToErrorResponse(err).Code; code == minioNoSuchKey {
		return nil
	}
	return err
}

func (m *MinIO) objectName(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if m.prefix == "" {
		return clean, nil
	}
	return path.Join(m.prefix, clean), nil
}

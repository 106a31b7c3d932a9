package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	publicBase string
}

// NewMinioStorage creates a MinIO client, ensures every bucket exists with a public-read
// policy, and returns a ready-to-use MinioStorage. An empty publicBase falls back to
// the endpoint itself.
func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, publicBase string, useSSL bool, buckets ...string) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	for _, bucket := range buckets {
		if err := ensureBucket(ctx, client, bucket); err != nil {
			return nil, err
		}
	}

	if publicBase == "" {
		publicBase = client.EndpointURL().String()
	}

	return &MinioStorage{client: client, publicBase: publicBase}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		slog.Info("storage: created bucket", "bucket", bucket)
	}

	if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return fmt.Errorf("set bucket policy %q: %w", bucket, err)
	}
	return nil
}

// Put streams the file to MinIO with its exact size so the client never buffers it whole.
func (s *MinioStorage) Put(ctx context.Context, localPath, bucket, key string) (string, error) {
	obj, err := openObject(localPath)
	if err != nil {
		return "", err
	}
	defer obj.file.Close()

	_, err = s.client.PutObject(ctx, bucket, key, obj.file, obj.size, minio.PutObjectOptions{
		ContentType: obj.contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

// Delete removes the object at key from bucket.
func (s *MinioStorage) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the path-style URL for the given object,
// e.g. "http://localhost:9000/photos-main/Spring_Gala_main_<id>".
func (s *MinioStorage) PublicURL(bucket, key string) string {
	return joinURL(s.publicBase, bucket, key)
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": map[string]interface{}{"AWS": []string{"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

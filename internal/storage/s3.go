package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of *s3.Client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage implements Storage on top of AWS S3.
type S3Storage struct {
	client     s3API
	region     string
	publicBase string
}

// NewS3Storage loads the default AWS configuration for region. Static credentials are
// used when accessKey is set; otherwise the SDK's default chain applies.
func NewS3Storage(ctx context.Context, region, accessKey, secretKey, publicBase string) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3Storage(s3.NewFromConfig(cfg), region, publicBase), nil
}

func newS3Storage(client s3API, region, publicBase string) *S3Storage {
	return &S3Storage{client: client, region: region, publicBase: publicBase}
}

// Put streams the file as the request body with an explicit content length.
func (s *S3Storage) Put(ctx context.Context, localPath, bucket, key string) (string, error) {
	obj, err := openObject(localPath)
	if err != nil {
		return "", err
	}
	defer obj.file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          obj.file,
		ContentLength: aws.Int64(obj.size),
		ContentType:   aws.String(obj.contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

// Delete removes the object at key from bucket.
func (s *S3Storage) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the virtual-hosted style S3 URL unless a public base (CDN) is configured.
func (s *S3Storage) PublicURL(bucket, key string) string {
	if s.publicBase != "" {
		return joinURL(s.publicBase, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, escapeKey(key))
}

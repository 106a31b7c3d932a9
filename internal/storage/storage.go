// Package storage defines the interface for object storage operations.
// The MinIO implementation works with any S3-compatible provider; the S3
// implementation talks to AWS directly through the v2 SDK.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Storage uploads local files to named buckets and returns public locators.
// Implementations perform no retries and keep no per-call state.
type Storage interface {
	// Put streams the file at localPath to bucket under key and returns its locator.
	Put(ctx context.Context, localPath, bucket, key string) (string, error)
	// Delete removes the object identified by bucket and key.
	Delete(ctx context.Context, bucket, key string) error
	// PublicURL constructs the browser-accessible URL for an object.
	PublicURL(bucket, key string) string
}

// object is an opened local file ready to be streamed.
type object struct {
	file        *os.File
	size        int64
	contentType string
}

// openObject opens path for streaming and sniffs its content type from the header bytes.
func openObject(path string) (*object, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	return &object{file: f, size: info.Size(), contentType: mt.String()}, nil
}

func joinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

// escapeKey percent-encodes each "/"-separated segment of an object key.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

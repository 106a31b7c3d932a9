package photo

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/photoarchive/service/internal/derivative"
)

// memStore is an in-memory storage.Storage.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failOn  map[string]error // bucket -> error returned by Put
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failOn: map[string]error{}}
}

func (s *memStore) Put(ctx context.Context, localPath, bucket, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[bucket]; err != nil {
		return "", err
	}
	b, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	s.objects[bucket+"/"+key] = b
	return s.PublicURL(bucket, key), nil
}

func (s *memStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	s.deleted = append(s.deleted, bucket+"/"+key)
	return nil
}

func (s *memStore) PublicURL(bucket, key string) string {
	return "https://objects.test/" + bucket + "/" + key
}

func (s *memStore) keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	prefix := bucket + "/"
	for k := range s.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	sort.Strings(out)
	return out
}

// memRepository is an in-memory Repository with strictly increasing creation times.
type memRepository struct {
	mu        sync.Mutex
	photos    []Photo
	seq       int
	base      time.Time
	createErr error
	listErr   error
}

func newMemRepository() *memRepository {
	return &memRepository{base: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *memRepository) Create(_ context.Context, p *Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	p.ID = fmt.Sprintf("photo-%03d", r.seq)
	p.CreatedAt = r.base.Add(time.Duration(r.seq) * time.Second)
	p.UpdatedAt = p.CreatedAt
	r.photos = append(r.photos, *p)
	return nil
}

func (r *memRepository) ListPublished(_ context.Context, q ListQuery) ([]Photo, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}

	var matched []Photo
	for _, p := range r.photos {
		if p.IsPublished && !p.IsPrivate {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		less := a.CreatedAt.Before(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.ID < b.ID)
		if q.Order == SortAsc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return []Photo{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], total, nil
}

func (r *memRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.photos)
}

// writeSourcePNG stages a w×h PNG the way the handler would.
func writeSourcePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	f, err := os.CreateTemp(dir, "upload-*.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return f.Name()
}

func writeCorruptSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "upload-corrupt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff garbage"), 0o644))
	return path
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Empty(t, names, "temporary files left in %s", dir)
}

// failingMetadata wraps a real generator but cannot read metadata.
type failingMetadata struct {
	*derivative.Generator
}

func (failingMetadata) ExtractMetadata(context.Context, string) (derivative.Metadata, error) {
	return derivative.Metadata{}, fmt.Errorf("read header: %w", derivative.ErrUnsupported)
}

// cancelOnPut cancels the request context when the named bucket is written.
type cancelOnPut struct {
	*memStore
	bucket string
	cancel context.CancelFunc
}

func (s *cancelOnPut) Put(ctx context.Context, localPath, bucket, key string) (string, error) {
	if bucket == s.bucket {
		s.cancel()
		return "", ctx.Err()
	}
	return s.memStore.Put(ctx, localPath, bucket, key)
}

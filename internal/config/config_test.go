package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"PORT", "CATALOG_DRIVER", "STORAGE_DRIVER", "BUCKET_MAIN", "BUCKET_THUMBNAILS", "MAX_UPLOAD_BYTES", "DEFAULT_PAGE_SIZE", "APP_ENV", "MAX_IMAGE_PIXELS", "UPLOAD_ROLES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, CatalogPostgres, cfg.CatalogDriver)
	assert.Equal(t, StorageMinio, cfg.StorageDriver)
	assert.Equal(t, "photos-main", cfg.BucketMain)
	assert.Equal(t, "photos-thumbnails", cfg.BucketThumbnails)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, int64(50_000_000), cfg.MaxImagePixels)
	assert.Empty(t, cfg.UploadRoles)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_DRIVER", StorageS3)
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("DEFAULT_PAGE_SIZE", "25")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")
	t.Setenv("UPLOAD_ROLES", "admin, editor,,")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StorageS3, cfg.StorageDriver)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, 25, cfg.DefaultPageSize)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, int64(1_000_000), cfg.MaxImagePixels)
	assert.Equal(t, []string{"admin", "editor"}, cfg.UploadRoles)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

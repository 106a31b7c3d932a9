package photo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoarchive/service/internal/db"
)

func newMongoIntegrationRepo(t *testing.T) *MongoRepository {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := db.ConnectMongo(ctx, uri)
	require.NoError(t, err)

	database := client.Database("photo_it_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewMongoRepository(database)
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongoRepositoryCreateAndListPublished(t *testing.T) {
	repo := newMongoIntegrationRepo(t)
	ctx := context.Background()

	var published []string
	for i := 0; i < 5; i++ {
		p := &Photo{Title: fmt.Sprintf("photo %d", i), URL: "u", Thumbnail: "t", IsPublished: true}
		require.NoError(t, repo.Create(ctx, p))
		require.NotEmpty(t, p.ID)
		assert.Equal(t, []string{}, p.Tags)
		assert.False(t, p.CreatedAt.IsZero())
		published = append(published, p.ID)
	}
	draft := &Photo{Title: "draft", IsPublished: false}
	require.NoError(t, repo.Create(ctx, draft))
	private := &Photo{Title: "private", IsPublished: true, IsPrivate: true}
	require.NoError(t, repo.Create(ctx, private))

	t.Run("ascending pages cover every published photo once", func(t *testing.T) {
		var seen []string
		for offset := 0; offset < 6; offset += 2 {
			page, total, err := repo.ListPublished(ctx, ListQuery{Order: SortAsc, Limit: 2, Offset: offset})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			for _, p := range page {
				assert.True(t, p.IsPublished)
				assert.False(t, p.IsPrivate)
				seen = append(seen, p.ID)
			}
		}
		assert.Equal(t, published, seen)
	})

	t.Run("descending returns newest first", func(t *testing.T) {
		page, total, err := repo.ListPublished(ctx, ListQuery{Order: SortDesc, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 5)
		for i, p := range page {
			assert.Equal(t, published[len(published)-1-i], p.ID)
			assert.NotEqual(t, draft.ID, p.ID)
			assert.NotEqual(t, private.ID, p.ID)
		}
	})

	t.Run("offset past the end", func(t *testing.T) {
		page, total, err := repo.ListPublished(ctx, ListQuery{Order: SortDesc, Limit: 2, Offset: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Empty(t, page)
	})
}

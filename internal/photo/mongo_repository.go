package photo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/photoarchive/service/internal/derivative"
)

const photosCollection = "photos"

// mongoPhoto is the document shape of a photo.
type mongoPhoto struct {
	ID          bson.ObjectID       `bson:"_id,omitempty"`
	URL         string              `bson:"url"`
	Thumbnail   string              `bson:"thumbnail"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Tags        []string            `bson:"tags"`
	Year        int                 `bson:"year,omitempty"`
	Month       int                 `bson:"month,omitempty"`
	MeetingID   string              `bson:"meeting_id,omitempty"`
	Metadata    derivative.Metadata `bson:"metadata"`
	IsPublished bool                `bson:"is_published"`
	IsPrivate   bool                `bson:"is_private"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

func (d mongoPhoto) photo() Photo {
	return Photo{
		ID:          d.ID.Hex(),
		URL:         d.URL,
		Thumbnail:   d.Thumbnail,
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Year:        d.Year,
		Month:       d.Month,
		MeetingID:   d.MeetingID,
		Metadata:    d.Metadata,
		IsPublished: d.IsPublished,
		IsPrivate:   d.IsPrivate,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoRepository stores photos in a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository returns a repository over the photos collection of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(photosCollection), now: time.Now}
}

// EnsureIndexes creates the compound index backing the public listing.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "is_published", Value: 1},
			{Key: "is_private", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create listing index: %w", err)
	}
	return nil
}

// Create inserts p and fills in its generated id and timestamps.
func (r *MongoRepository) Create(ctx context.Context, p *Photo) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	doc := mongoPhoto{
		ID:          bson.NewObjectID(),
		URL:         p.URL,
		Thumbnail:   p.Thumbnail,
		Title:       p.Title,
		Description: p.Description,
		Tags:        tags,
		Year:        p.Year,
		Month:       p.Month,
		MeetingID:   p.MeetingID,
		Metadata:    p.Metadata,
		IsPublished: p.IsPublished,
		IsPrivate:   p.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}

	p.ID = doc.ID.Hex()
	p.Tags = tags
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// ListPublished pages through published, non-private photos ordered by
// (created_at, _id).
func (r *MongoRepository) ListPublished(ctx context.Context, q ListQuery) ([]Photo, int64, error) {
	filter := publishedFilter()

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	cur, err := r.coll.Find(ctx, filter, listFindOptions(q))
	if err != nil {
		return nil, 0, fmt.Errorf("find photos: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoPhoto
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode photos: %w", err)
	}

	photos := make([]Photo, 0, len(docs))
	for _, d := range docs {
		photos = append(photos, d.photo())
	}
	return photos, total, nil
}

func publishedFilter() bson.D {
	return bson.D{
		{Key: "is_published", Value: true},
		{Key: "is_private", Value: false},
	}
}

func listFindOptions(q ListQuery) *options.FindOptionsBuilder {
	dir := -1
	if q.Order == SortAsc {
		dir = 1
	}
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))
}

// Package photo ingests uploaded photos into object storage and the catalog,
// and serves the public, paginated photo listing.
package photo

import (
	"context"
	"strings"
	"time"

	"github.com/photoarchive/service/internal/derivative"
)

// Photo is a catalog record. Metadata describes the original asset and is never
// rewritten after creation.
type Photo struct {
	ID          string              `json:"id"`
	URL         string              `json:"url"`
	Thumbnail   string              `json:"thumbnail"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Tags        []string            `json:"tags"`
	Year        int                 `json:"year,omitempty"`
	Month       int                 `json:"month,omitempty"`
	MeetingID   string              `json:"meeting_id,omitempty"`
	Metadata    derivative.Metadata `json:"metadata"`
	IsPublished bool                `json:"is_published"`
	IsPrivate   bool                `json:"is_private"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Descriptor carries the caller-supplied fields of an upload.
type Descriptor struct {
	Title       string   `json:"title"       validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Tags        []string `json:"tags"        validate:"max=50,dive,max=64"`
	Year        int      `json:"year"        validate:"omitempty,min=1,max=9999"`
	Month       int      `json:"month"       validate:"omitempty,min=1,max=12"`
	MeetingID   string   `json:"meeting_id"  validate:"max=128"`
}

// normalize trims surrounding whitespace and drops empty tags.
func (d Descriptor) normalize() Descriptor {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.MeetingID = strings.TrimSpace(d.MeetingID)

	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	d.Tags = tags
	return d
}

// SortOrder orders listings by creation time.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery is the storage-level form of ListOptions.
type ListQuery struct {
	Order  SortOrder
	Limit  int
	Offset int
}

// Repository persists and queries catalog records.
type Repository interface {
	// Create inserts p and fills in its ID and timestamps.
	Create(ctx context.Context, p *Photo) error
	// ListPublished returns one page of published, non-private photos ordered by
	// (created_at, id) in q.Order, plus the total number of matching records.
	ListPublished(ctx context.Context, q ListQuery) ([]Photo, int64, error)
}

package photo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pool is the subset of pgxpool.Pool used by PostgresRepository.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores photos in the photos table.
type PostgresRepository struct {
	db pool
}

// NewPostgresRepository creates a new PostgresRepository with the given connection pool.
func NewPostgresRepository(db pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const photoColumns = `id, url, thumbnail, title, description, tags,
	COALESCE(year, 0), COALESCE(month, 0), COALESCE(meeting_id, ''),
	metadata, is_published, is_private, created_at, updated_at`

const publicFilter = `is_published AND NOT is_private`

// Create inserts a new photo and fills in its generated id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, p *Photo) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO photos (url, thumbnail, title, description, tags, year, month, meeting_id, metadata, is_published, is_private)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NULLIF($7, 0), NULLIF($8, ''), $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		p.URL, p.Thumbnail, p.Title, p.Description, tags, p.Year, p.Month, p.MeetingID, meta, p.IsPublished, p.IsPrivate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	p.Tags = tags
	return nil
}

// ListPublished pages through published, non-private photos. Rows are ordered by
// created_at with id as tie-break so page boundaries are stable.
func (r *PostgresRepository) ListPublished(ctx context.Context, q ListQuery) ([]Photo, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM photos WHERE `+publicFilter,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	dir := "DESC"
	if q.Order == SortAsc {
		dir = "ASC"
	}

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM photos WHERE %s
		 ORDER BY created_at %s, id %s
		 LIMIT $1 OFFSET $2`, photoColumns, publicFilter, dir, dir),
		q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]Photo, 0, q.Limit)
	for rows.Next() {
		var (
			p    Photo
			meta []byte
		)
		if err := rows.Scan(&p.ID, &p.URL, &p.Thumbnail, &p.Title, &p.Description, &p.Tags,
			&p.Year, &p.Month, &p.MeetingID, &meta, &p.IsPublished, &p.IsPrivate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan photo: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode metadata of %s: %w", p.ID, err)
			}
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, total, nil
}

package photo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/photoarchive/service/internal/derivative"
	"github.com/photoarchive/service/internal/storage"
	"github.com/photoarchive/service/internal/tempfile"
)

// Deriver produces thumbnails and reads image metadata.
type Deriver interface {
	Resize(ctx context.Context, sourcePath string, width, height int) (string, error)
	ExtractMetadata(ctx context.Context, sourcePath string) (derivative.Metadata, error)
}

// Buckets names the two object-store buckets written by an ingestion.
type Buckets struct {
	Main       string
	Thumbnails string
}

// Service contains the ingestion pipeline and the public listing.
type Service struct {
	repo     Repository
	store    storage.Storage
	deriver  Deriver
	buckets  Buckets
	metrics  *Metrics
	logger   *slog.Logger
	validate *validator.Validate
	newID    func() string
}

// NewService creates a new photo Service. metrics may be nil.
func NewService(repo Repository, store storage.Storage, deriver Deriver, buckets Buckets, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Service{
		repo:     repo,
		store:    store,
		deriver:  deriver,
		buckets:  buckets,
		metrics:  metrics,
		logger:   logger.With("component", "photo"),
		validate: validate,
		newID:    uuid.NewString,
	}
}

// objectKeys are the storage keys of one ingestion.
type objectKeys struct {
	main      string
	thumbnail string
}

// newObjectKeys derives keys from the title and a per-request id; the id alone
// keeps keys unique.
func newObjectKeys(title, id string) objectKeys {
	base := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, strings.Join(strings.Fields(title), "_"))

	return objectKeys{
		main:      fmt.Sprintf("%s_main_%s", base, id),
		thumbnail: fmt.Sprintf("%s_thumb_%s.jpg", base, id),
	}
}

// Ingest takes ownership of the staged file at sourcePath, stores it and its
// thumbnail, and records the photo. The record is a draft when isDraft is set.
// sourcePath and any derivative are removed before Ingest returns, whatever
// the outcome. A record is only written after both uploads succeeded.
func (s *Service) Ingest(ctx context.Context, desc Descriptor, sourcePath string, isDraft bool) (_ *Photo, err error) {
	start := time.Now()
	scope := tempfile.New(s.logger)
	scope.Track(sourcePath)
	defer func() {
		if rerr := scope.Release(); rerr != nil {
			s.logger.Warn("temp files left behind", "err", rerr)
		}
		s.metrics.observeIngest(KindOf(err), time.Since(start))
	}()

	desc = desc.normalize()
	if err := s.validate.Struct(desc); err != nil {
		return nil, &Error{Op: OpIngest, Kind: KindValidation, Step: "validate", Err: validationError(err)}
	}

	keys := newObjectKeys(desc.Title, s.newID())
	logger := s.logger.With("main_key", keys.main)

	var (
		thumbPath string
		mainURL   string
		thumbURL  string
		meta      derivative.Metadata
		record    *Photo
	)

	p := &pipeline{logger: logger, steps: []step{
		{
			name: "resize",
			kind: KindDerivative,
			run: func(ctx context.Context) error {
				path, err := s.deriver.Resize(ctx, sourcePath, derivative.ThumbnailWidth, derivative.ThumbnailHeight)
				if err != nil {
					return fmt.Errorf("generate thumbnail: %w", err)
				}
				thumbPath = path
				scope.Track(path)
				return nil
			},
		},
		{
			name: "upload-main",
			kind: KindObjectStore,
			run: func(ctx context.Context) error {
				url, err := s.store.Put(ctx, sourcePath, s.buckets.Main, keys.main)
				if err != nil {
					return fmt.Errorf("upload original: %w", err)
				}
				mainURL = url
				return nil
			},
			rollback: func(ctx context.Context) error {
				return s.store.Delete(ctx, s.buckets.Main, keys.main)
			},
		},
		{
			name: "upload-thumbnail",
			kind: KindObjectStore,
			run: func(ctx context.Context) error {
				url, err := s.store.Put(ctx, thumbPath, s.buckets.Thumbnails, keys.thumbnail)
				if err != nil {
					return fmt.Errorf("upload thumbnail: %w", err)
				}
				thumbURL = url
				return nil
			},
			rollback: func(ctx context.Context) error {
				return s.store.Delete(ctx, s.buckets.Thumbnails, keys.thumbnail)
			},
		},
		{
			name: "extract-metadata",
			kind: KindMetadata,
			run: func(ctx context.Context) error {
				m, err := s.deriver.ExtractMetadata(ctx, sourcePath)
				if err != nil {
					return fmt.Errorf("extract metadata: %w", err)
				}
				meta = m
				return nil
			},
		},
		{
			name: "release-temp",
			kind: KindCleanup,
			run: func(context.Context) error {
				return scope.Release()
			},
		},
		{
			name: "persist",
			kind: KindPersistence,
			run: func(ctx context.Context) error {
				record = &Photo{
					URL:         mainURL,
					Thumbnail:   thumbURL,
					Title:       desc.Title,
					Description: desc.Description,
					Tags:        desc.Tags,
					Year:        desc.Year,
					Month:       desc.Month,
					MeetingID:   desc.MeetingID,
					Metadata:    meta,
					IsPublished: !isDraft,
				}
				if err := s.repo.Create(ctx, record); err != nil {
					return fmt.Errorf("create photo: %w", err)
				}
				return nil
			},
		},
	}}

	if err := p.run(ctx); err != nil {
		return nil, err
	}

	logger.Info("photo ingested", "id", record.ID, "published", record.IsPublished)
	return record, nil
}

// List returns one page of published, non-private photos.
func (s *Service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	opts = opts.normalized()
	photos, total, err := s.repo.ListPublished(ctx, opts.query())
	if err != nil {
		return nil, &Error{Op: OpList, Kind: KindPersistence, Err: fmt.Errorf("list photos: %w", err)}
	}
	return newPage(photos, total, opts), nil
}

// validationError turns validator output into a single readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

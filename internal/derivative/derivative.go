// Package derivative produces resized preview copies of uploaded images and
// reads structural metadata from the originals.
package derivative

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fixed preview box used by the ingestion pipeline.
const (
	ThumbnailWidth  = 300
	ThumbnailHeight = 300
)

const jpegQuality = 85

// DefaultMaxPixels bounds the decoded size of a source image (width × height).
const DefaultMaxPixels = 50_000_000

// ErrUnsupported is returned when a source file cannot be decoded as an image.
var ErrUnsupported = errors.New("unsupported or corrupt image")

// ErrTooLarge is returned when a source declares more pixels than the generator
// accepts. It matches ErrUnsupported.
var ErrTooLarge = fmt.Errorf("%w: image dimensions too large", ErrUnsupported)

// Metadata describes the structure of an original image.
type Metadata struct {
	Format   string `json:"format"   bson:"format"`
	MimeType string `json:"mimeType" bson:"mime_type"`
	Width    int    `json:"width"    bson:"width"`
	Height   int    `json:"height"   bson:"height"`
	Size     int64  `json:"size"     bson:"size"`
	Space    string `json:"space"    bson:"space"`
	Channels int    `json:"channels" bson:"channels"`
	HasAlpha bool   `json:"hasAlpha" bson:"has_alpha"`
}

// Generator writes derivatives into a work directory.
type Generator struct {
	workDir   string
	maxPixels int64
}

// NewGenerator creates workDir if needed and returns a Generator writing into it.
// Sources larger than maxPixels are refused before decoding; maxPixels <= 0
// selects DefaultMaxPixels.
func NewGenerator(workDir string, maxPixels int64) (*Generator, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Generator{workDir: workDir, maxPixels: maxPixels}, nil
}

// Resize decodes sourcePath, fits it inside width×height keeping its aspect ratio
// and writes the result as a new JPEG file. The source is never modified and
// images already inside the box are not enlarged.
func (g *Generator) Resize(ctx context.Context, sourcePath string, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid target box %dx%d", width, height)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := g.checkDimensions(sourcePath); err != nil {
		return "", err
	}

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %q: %w: %w", sourcePath, ErrUnsupported, err)
	}
	thumb := imaging.Fit(src, width, height, imaging.Lanczos)

	out, err := os.CreateTemp(g.workDir, "thumb-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create derivative file: %w", err)
	}
	path := out.Name()

	if err := imaging.Encode(out, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("encode derivative: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close derivative: %w", err)
	}
	return path, nil
}

// checkDimensions reads only the header of sourcePath and refuses images whose
// pixel count exceeds the configured bound. Compressed size says nothing about
// the buffer a full decode allocates.
func (g *Generator) checkDimensions(sourcePath string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open %q: %w", sourcePath, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("read header %q: %w: %w", sourcePath, ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrUnsupported, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > g.maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, g.maxPixels)
	}
	return nil
}

// ExtractMetadata reads the image header of sourcePath without decoding pixel data.
func (g *Generator) ExtractMetadata(ctx context.Context, sourcePath string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %q: %w", sourcePath, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("read header %q: %w: %w", sourcePath, ErrUnsupported, err)
	}

	info, err := f.Stat()
	if err != nil {
		return Metadata{}, fmt.Errorf("stat %q: %w", sourcePath, err)
	}

	mt, err := mimetype.DetectFile(sourcePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("detect mime type: %w", err)
	}

	space, channels, alpha := describeColorModel(cfg.ColorModel)
	return Metadata{
		Format:   format,
		MimeType: mt.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     info.Size(),
		Space:    space,
		Channels: channels,
		HasAlpha: alpha,
	}, nil
}

func describeColorModel(m color.Model) (space string, channels int, alpha bool) {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return "srgb", 4, true
			}
		}
		return "srgb", 3, false
	}

	switch m {
	case color.GrayModel, color.Gray16Model:
		return "b-w", 1, false
	case color.CMYKModel:
		return "cmyk", 4, false
	case color.NYCbCrAModel, color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return "srgb", 4, true
	}
	return "srgb", 3, false
}

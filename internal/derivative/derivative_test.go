package derivative

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.NRGBA{R: 200, A: 255})
	}
	path := filepath.Join(dir, "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func writeGrayJPEG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "gray.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewGray(image.Rect(0, 0, w, h)), nil))
	require.NoError(t, f.Close())
	return path
}

// writeOversizedPNG writes a small, valid PNG whose header declares w×h 8-bit
// gray pixels backed by a highly compressed run of zero rows.
func writeOversizedPNG(t *testing.T, dir string, w, h uint32) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := func(typ string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		buf.WriteString(typ)
		buf.Write(data)
		binary.BigEndian.PutUint32(n[:], crc.Sum32())
		buf.Write(n[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	chunk("IHDR", ihdr)

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, err := zw.Write(make([]byte, 64<<10))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	chunk("IDAT", idat.Bytes())
	chunk("IEND", nil)

	path := filepath.Join(dir, "oversized.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func decodeBounds(t *testing.T, path string) (image.Rectangle, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return image.Rect(0, 0, cfg.Width, cfg.Height), format
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(filepath.Join(t.TempDir(), "work"), 0)
	require.NoError(t, err)
	return g
}

func TestResizeFitsInsideBox(t *testing.T) {
	g := newGenerator(t)
	src := writePNG(t, t.TempDir(), 1200, 600)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	out, err := g.Resize(context.Background(), src, ThumbnailWidth, ThumbnailHeight)
	require.NoError(t, err)

	assert.NotEqual(t, src, out)
	assert.Equal(t, g.workDir, filepath.Dir(out))
	bounds, format := decodeBounds(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, bounds.Dx())
	assert.Equal(t, 150, bounds.Dy())

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must not be modified")
}

func TestResizePortraitAndSmallImages(t *testing.T) {
	g := newGenerator(t)

	out, err := g.Resize(context.Background(), writeGrayJPEG(t, t.TempDir(), 400, 1000), ThumbnailWidth, ThumbnailHeight)
	require.NoError(t, err)
	bounds, _ := decodeBounds(t, out)
	assert.Equal(t, 120, bounds.Dx())
	assert.Equal(t, 300, bounds.Dy())

	out, err = g.Resize(context.Background(), writePNG(t, t.TempDir(), 100, 50), ThumbnailWidth, ThumbnailHeight)
	require.NoError(t, err)
	bounds, _ = decodeBounds(t, out)
	assert.Equal(t, 100, bounds.Dx())
	assert.Equal(t, 50, bounds.Dy())
}

func TestResizeRejectsCorruptSource(t *testing.T) {
	g := newGenerator(t)
	bad := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not an image"), 0o644))

	_, err := g.Resize(context.Background(), bad, ThumbnailWidth, ThumbnailHeight)
	require.ErrorIs(t, err, ErrUnsupported)

	entries, err := os.ReadDir(g.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial derivative may be left behind")
}

func TestResizeRefusesOversizedSourceBeforeDecoding(t *testing.T) {
	g := newGenerator(t)
	src := writeOversizedPNG(t, t.TempDir(), 12000, 12000)
	info, err := os.Stat(src)
	require.NoError(t, err)
	require.Less(t, info.Size(), int64(4<<10))

	_, err = g.Resize(context.Background(), src, ThumbnailWidth, ThumbnailHeight)

	require.ErrorIs(t, err, ErrTooLarge)
	require.ErrorIs(t, err, ErrUnsupported)
	entries, err := os.ReadDir(g.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResizeHonoursPixelLimit(t *testing.T) {
	g, err := NewGenerator(filepath.Join(t.TempDir(), "work"), 100*100)
	require.NoError(t, err)

	_, err = g.Resize(context.Background(), writePNG(t, t.TempDir(), 101, 100), ThumbnailWidth, ThumbnailHeight)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = g.Resize(context.Background(), writePNG(t, t.TempDir(), 100, 100), ThumbnailWidth, ThumbnailHeight)
	require.NoError(t, err)
}

func TestResizeHonoursContext(t *testing.T) {
	g := newGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Resize(ctx, writePNG(t, t.TempDir(), 10, 10), ThumbnailWidth, ThumbnailHeight)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractMetadata(t *testing.T) {
	g := newGenerator(t)
	src := writePNG(t, t.TempDir(), 640, 480)
	info, err := os.Stat(src)
	require.NoError(t, err)

	meta, err := g.ExtractMetadata(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, Metadata{
		Format:   "png",
		MimeType: "image/png",
		Width:    640,
		Height:   480,
		Size:     info.Size(),
		Space:    "srgb",
		Channels: 4,
		HasAlpha: true,
	}, meta)
}

func TestExtractMetadataGrayJPEG(t *testing.T) {
	g := newGenerator(t)

	meta, err := g.ExtractMetadata(context.Background(), writeGrayJPEG(t, t.TempDir(), 32, 16))
	require.NoError(t, err)

	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, "image/jpeg", meta.MimeType)
	assert.Equal(t, "b-w", meta.Space)
	assert.Equal(t, 1, meta.Channels)
	assert.False(t, meta.HasAlpha)
}

func TestExtractMetadataRejectsCorruptSource(t *testing.T) {
	g := newGenerator(t)
	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte{0x00, 0x01, 0x02}, 0o644))

	_, err := g.ExtractMetadata(context.Background(), bad)
	require.ErrorIs(t, err, ErrUnsupported)
}

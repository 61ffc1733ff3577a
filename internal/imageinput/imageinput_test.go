package imageinput

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spherical/image-analyzer/internal/domain"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func encode(t *testing.T, fn func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf, sampleImage()))
	return buf.Bytes()
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		enc  func(*bytes.Buffer, image.Image) error
		want string
	}{
		{"png", func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, "image/png"},
		{"jpeg", func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) }, "image/jpeg"},
		{"gif", func(b *bytes.Buffer, i image.Image) error { return gif.Encode(b, i, nil) }, "image/gif"},
		{"bmp", func(b *bytes.Buffer, i image.Image) error { return bmp.Encode(b, i) }, "image/bmp"},
		{"tiff", func(b *bytes.Buffer, i image.Image) error { return tiff.Encode(b, i, nil) }, "image/tiff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := DetectMimeType(encode(t, tt.enc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mime)
		})
	}
}

func TestDetectMimeType_Rejects(t *testing.T) {
	_, err := DetectMimeType(nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypePrecondition))

	_, err = DetectMimeType([]byte("%PDF-1.7 not an image"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeMalformed))
}

func TestFromReader_SizeLimit(t *testing.T) {
	data := encode(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) })

	_, err := FromReader(bytes.NewReader(data), int64(len(data)-1))
	assert.True(t, domain.IsType(err, domain.ErrorTypePrecondition))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = FromReader(bytes.NewReader(nil), int64(len(data)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooLarge)

	img, err := FromReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, data, img.Data)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.png")
	data := encode(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) })
	require.NoError(t, os.WriteFile(path, data, 0o644))

	img, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.False(t, img.Empty())

	_, err = Read(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	assert.True(t, strings.Contains(err.Error(), "missing.png"))
}

// Package imageinput loads user images and detects their MIME type before
// they are sent for extraction.
package imageinput

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spherical/image-analyzer/internal/domain"
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes int64 = 20 << 20

// ErrTooLarge is wrapped by every error caused by an input over its size
// limit.
var ErrTooLarge = errors.New("input too large")

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// DetectMimeType decodes just the image header and returns its MIME type.
func DetectMimeType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.PreconditionError("no image provided")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", domain.MalformedError("unsupported or corrupt image", err)
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return "", domain.MalformedError(fmt.Sprintf("unsupported image format %q", format), nil)
	}
	return mime, nil
}

// FromBytes wraps raw bytes as an Image after validating the format.
func FromBytes(data []byte) (*domain.Image, error) {
	mime, err := DetectMimeType(data)
	if err != nil {
		return nil, err
	}
	return &domain.Image{Data: data, MimeType: mime}, nil
}

// ReadLimited reads all of r, failing with ErrTooLarge past maxBytes.
// maxBytes <= 0 uses DefaultMaxBytes.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, domain.IOError("failed to read input", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.NewError(domain.ErrorTypePrecondition,
			fmt.Sprintf("input exceeds %d bytes", maxBytes), ErrTooLarge)
	}
	return data, nil
}

// FromReader reads at most maxBytes from r and validates the image.
func FromReader(r io.Reader, maxBytes int64) (*domain.Image, error) {
	data, err := ReadLimited(r, maxBytes)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// Read loads an image from disk.
func Read(path string) (*domain.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	return FromReader(f, DefaultMaxBytes)
}

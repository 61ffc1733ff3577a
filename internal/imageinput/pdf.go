package imageinput

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/image-analyzer/internal/domain"
)

// DefaultPDFQuality is the JPEG quality used for rendered pages.
const DefaultPDFQuality = 85

// IsPDF reports whether path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ReadPDF renders every page of the PDF at path as a JPEG image.
func ReadPDF(ctx context.Context, path string, quality int) ([]*domain.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to open PDF %s", path), err)
	}
	defer doc.Close()

	return renderPages(ctx, doc, quality)
}

// PDFFromBytes renders every page of an in-memory PDF.
func PDFFromBytes(ctx context.Context, data []byte, quality int) ([]*domain.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.MalformedError("unreadable PDF", err)
	}
	defer doc.Close()

	return renderPages(ctx, doc, quality)
}

func renderPages(ctx context.Context, doc *fitz.Document, quality int) ([]*domain.Image, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultPDFQuality
	}

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.PreconditionError("PDF has no pages")
	}

	images := make([]*domain.Image, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Image(n)
		if err != nil {
			return nil, domain.MalformedError(fmt.Sprintf("failed to render page %d", n+1), err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to encode page %d", n+1), err)
		}
		images = append(images, &domain.Image{Data: buf.Bytes(), MimeType: "image/jpeg"})
	}
	return images, nil
}

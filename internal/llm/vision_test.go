package llm

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/spherical/image-analyzer/internal/domain"
)

const receiptPayload = `{"originalTitle":"Recibo","originalText":"Pan 2,50","englishTitle":"Receipt","englishText":"Bread 2.50","contentType":"receipt","aiArtStyle":"watercolor still life"}`

func TestExtract_Receipt(t *testing.T) {
	srv := newScriptedServer(t, envelope(receiptPayload), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	image := &domain.Image{Data: []byte("png-bytes"), MimeType: "image/png"}
	result, err := client.Extract(context.Background(), image, "VALID")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := domain.ExtractionResult{
		OriginalTitle: "Recibo",
		OriginalText:  "Pan 2,50",
		EnglishTitle:  "Receipt",
		EnglishText:   "Bread 2.50",
		ContentType:   "receipt",
		AIArtStyle:    "watercolor still life",
	}
	if *result != want {
		t.Errorf("Expected %+v, got %+v", want, *result)
	}
	if srv.count() != 1 {
		t.Errorf("Expected exactly one request, got %d", srv.count())
	}

	req := srv.requests[0]
	if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
		t.Fatalf("Expected one turn with prompt and image, got %+v", req.Contents)
	}
	inline := req.Contents[0].Parts[1].InlineData
	if inline == nil || inline.MimeType != "image/png" {
		t.Fatalf("Expected inline PNG data, got %+v", inline)
	}
	if inline.Data != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Errorf("Image data not base64 encoded: %q", inline.Data)
	}
	if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("Expected JSON response format, got %+v", req.GenerationConfig)
	}
	if !strings.Contains(req.Contents[0].Parts[0].Text, "aiArtStyle") {
		t.Error("Prompt should name the expected keys")
	}
}

func TestExtract_Preconditions(t *testing.T) {
	srv := newScriptedServer(t, envelope(receiptPayload), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	tests := []struct {
		name   string
		image  *domain.Image
		apiKey string
	}{
		{"empty api key", &domain.Image{Data: []byte("x")}, ""},
		{"nil image", nil, "VALID"},
		{"empty image", &domain.Image{}, "VALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.Extract(context.Background(), tt.image, tt.apiKey)
			if !domain.IsType(err, domain.ErrorTypePrecondition) {
				t.Fatalf("Expected precondition error, got %v", err)
			}
			if result != nil {
				t.Errorf("Expected no result, got %+v", result)
			}
		})
	}

	if srv.count() != 0 {
		t.Errorf("Expected zero network calls, got %d", srv.count())
	}
}

func TestExtract_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", envelope("Here is your result: Recibo")},
		{"missing key", envelope(`{"originalTitle":"a","originalText":"b","englishTitle":"c","englishText":"d","contentType":"e"}`)},
		{"non-string field", envelope(`{"originalTitle":1,"originalText":"b","englishTitle":"c","englishText":"d","contentType":"e","aiArtStyle":"f"}`)},
		{"empty candidates", `{"candidates":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newScriptedServer(t, tt.body, http.StatusOK)
			client := newTestClient(srv.URL, &recordingSleeper{})

			result, err := client.Extract(context.Background(), &domain.Image{Data: []byte("x")}, "VALID")
			if !domain.IsType(err, domain.ErrorTypeMalformed) {
				t.Fatalf("Expected malformed error, got %v", err)
			}
			if result != nil {
				t.Errorf("Malformed payload must not produce a result, got %+v", result)
			}
		})
	}
}

func TestExtract_DefaultsMimeType(t *testing.T) {
	srv := newScriptedServer(t, envelope(receiptPayload), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	if _, err := client.Extract(context.Background(), &domain.Image{Data: []byte("x")}, "VALID"); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got := srv.requests[0].Contents[0].Parts[1].InlineData.MimeType; got != "image/png" {
		t.Errorf("Expected image/png fallback, got %s", got)
	}
}

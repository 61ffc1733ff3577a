package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spherical/image-analyzer/internal/domain"
)

// extractionKeys are the keys the vision payload must carry.
var extractionKeys = []string{
	domain.FieldOriginalTitle,
	domain.FieldOriginalText,
	domain.FieldEnglishTitle,
	domain.FieldEnglishText,
	domain.FieldContentType,
	domain.FieldAIArtStyle,
}

// Extract sends the image to the vision model and parses the structured
// result. Rate-limited calls are retried with the vision policy.
func (c *Client) Extract(ctx context.Context, image *domain.Image, apiKey string) (*domain.ExtractionResult, error) {
	if image.Empty() {
		return nil, domain.PreconditionError("no image provided")
	}
	if apiKey == "" {
		return nil, domain.PreconditionError("API key is not configured")
	}

	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	req := userTurn([]Part{
		{Text: buildExtractionPrompt()},
		{InlineData: &InlineData{MimeType: mimeType, Data: image.Base64()}},
	}, jsonMimeType)

	c.logger.Debug().
		Str("model", c.model).
		Str("mime_type", mimeType).
		Int("image_bytes", len(image.Data)).
		Msg("Sending vision extraction request")

	resp, err := c.call(ctx, apiKey, req, c.visionPolicy)
	if err != nil {
		return nil, err
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, err
	}

	return parseExtraction(text)
}

// parseExtraction decodes the inner JSON payload. Every key must be present
// and hold a string; otherwise no result is returned.
func parseExtraction(text string) (*domain.ExtractionResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, domain.MalformedError("extraction payload is not valid JSON", err)
	}

	values := make(map[string]string, len(extractionKeys))
	for _, key := range extractionKeys {
		field, ok := raw[key]
		if !ok {
			return nil, domain.MalformedError(fmt.Sprintf("extraction payload is missing %q", key), nil)
		}
		var s string
		if err := json.Unmarshal(field, &s); err != nil {
			return nil, domain.MalformedError(fmt.Sprintf("extraction field %q is not a string", key), err)
		}
		values[key] = s
	}

	return &domain.ExtractionResult{
		OriginalTitle: values[domain.FieldOriginalTitle],
		OriginalText:  values[domain.FieldOriginalText],
		EnglishTitle:  values[domain.FieldEnglishTitle],
		EnglishText:   values[domain.FieldEnglishText],
		ContentType:   values[domain.FieldContentType],
		AIArtStyle:    values[domain.FieldAIArtStyle],
	}, nil
}

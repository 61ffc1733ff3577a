package domain

import "context"

// Extractor turns an image into an ExtractionResult.
type Extractor interface {
	Extract(ctx context.Context, image *Image, apiKey string) (*ExtractionResult, error)
}

// ContentDeriver produces follow-up content from extracted text.
type ContentDeriver interface {
	Summarize(ctx context.Context, text, apiKey string) (string, error)
	DraftEmail(ctx context.Context, text, apiKey string) (*EmailDraft, error)
}

// Notifier forwards an extraction result to an external endpoint.
// onStatus observes every state transition, including the final one.
type Notifier interface {
	Dispatch(ctx context.Context, url string, result *ExtractionResult, onStatus func(WebhookStatus)) (WebhookStatus, error)
}

// ConfigWriter persists a full configuration document.
type ConfigWriter interface {
	Save(ctx context.Context, cfg AppConfiguration) error
}

package llm

import (
	"context"
	"encoding/json"

	"github.com/spherical/image-analyzer/internal/domain"
)

// Summarize asks for a concise summary of text. The reply is used verbatim.
// Follow-up calls are never retried.
func (c *Client) Summarize(ctx context.Context, text, apiKey string) (string, error) {
	if err := derivedPreconditions(text, apiKey); err != nil {
		return "", err
	}

	req := userTurn([]Part{{Text: buildSummaryPrompt(text)}}, "")
	resp, err := c.call(ctx, apiKey, req, SingleAttempt())
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

// DraftEmail asks for a {subject, body} email built from text.
func (c *Client) DraftEmail(ctx context.Context, text, apiKey string) (*domain.EmailDraft, error) {
	if err := derivedPreconditions(text, apiKey); err != nil {
		return nil, err
	}

	req := userTurn([]Part{{Text: buildEmailPrompt(text)}}, jsonMimeType)
	resp, err := c.call(ctx, apiKey, req, SingleAttempt())
	if err != nil {
		return nil, err
	}

	payload, err := firstText(resp)
	if err != nil {
		return nil, err
	}

	var draft domain.EmailDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, domain.MalformedError("email draft payload is not valid JSON", err)
	}
	return &draft, nil
}

func derivedPreconditions(text, apiKey string) error {
	if text == "" {
		return domain.PreconditionError("no extracted text available")
	}
	if apiKey == "" {
		return domain.PreconditionError("API key is not configured")
	}
	return nil
}

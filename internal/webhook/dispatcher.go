// Package webhook forwards extraction results to a user-configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// User-visible status messages.
const (
	MessageNoURL   = "Error: no webhook URL configured."
	MessageSending = "Sending data to the webhook..."
	MessageSuccess = "Data sent to the webhook successfully."
)

// Dispatcher posts results to a webhook. It never retries.
type Dispatcher struct {
	httpClient *http.Client
	logger     *observability.Logger
}

// NewDispatcher creates a dispatcher. A zero timeout means none.
func NewDispatcher(timeout time.Duration, logger *observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Dispatch sends result to url as JSON. onStatus, when non-nil, sees every
// transition: sending, then success or failed.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, result *domain.ExtractionResult, onStatus func(domain.WebhookStatus)) (domain.WebhookStatus, error) {
	report := func(state domain.WebhookState, msg string) domain.WebhookStatus {
		st := domain.WebhookStatus{State: state, Message: msg}
		if onStatus != nil {
			onStatus(st)
		}
		return st
	}

	if url == "" {
		d.logger.Warn().Msg("Webhook dispatch skipped: no URL configured")
		return report(domain.WebhookFailed, MessageNoURL), domain.PreconditionError("no webhook URL configured")
	}
	if result == nil {
		return report(domain.WebhookFailed, "Error: nothing to send."), domain.PreconditionError("no extraction result to send")
	}

	report(domain.WebhookSending, MessageSending)

	body, err := json.Marshal(result)
	if err != nil {
		return report(domain.WebhookFailed, fmt.Sprintf("Error encoding webhook payload: %v", err)),
			domain.MalformedError("failed to marshal webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return report(domain.WebhookFailed, fmt.Sprintf("Network error sending to the webhook: %v", err)),
			domain.NetworkError("failed to build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error().Err(err).Msg("Webhook request failed")
		return report(domain.WebhookFailed, fmt.Sprintf("Network error sending to the webhook: %v", err)),
			domain.NetworkError("webhook request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn().
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Webhook returned non-success status")
		return report(domain.WebhookFailed, fmt.Sprintf("Error sending data to the webhook. Status code: %d", resp.StatusCode)),
			domain.UpstreamError(fmt.Sprintf("status code: %d", resp.StatusCode), resp.StatusCode)
	}

	d.logger.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Webhook delivered")
	return report(domain.WebhookSuccess, MessageSuccess), nil
}

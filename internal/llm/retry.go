package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/spherical/image-analyzer/internal/domain"
)

const (
	visionMaxAttempts    = 5
	visionInitialBackoff = 1 * time.Second
)

// RetryPolicy holds retry configuration. MaxAttempts counts the first
// request, so 1 disables retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// VisionRetryPolicy is applied to image extraction: 5 attempts, 1s, 2s, 4s, 8s apart.
func VisionRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    visionMaxAttempts,
		InitialBackoff: visionInitialBackoff,
	}
}

// SingleAttempt is applied to summary and email drafting.
func SingleAttempt() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Backoff returns the delay before the given 0-based attempt.
// Attempt 0 is sent immediately; attempt k waits initial * 2^(k-1).
func Backoff(attempt int, initial time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
}

// shouldRetry determines if a response status is retryable
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryObserver is told about every scheduled retry. attempt is 1-based
// and counts the request about to be sent.
type RetryObserver func(attempt int, delay time.Duration)

type retryObserverKey struct{}

// ContextWithRetryObserver attaches an observer to calls made with ctx.
func ContextWithRetryObserver(ctx context.Context, obs RetryObserver) context.Context {
	return context.WithValue(ctx, retryObserverKey{}, obs)
}

func retryObserverFrom(ctx context.Context) RetryObserver {
	if obs, ok := ctx.Value(retryObserverKey{}).(RetryObserver); ok {
		return obs
	}
	return nil
}

// retryWithBackoff sends reqFunc until it returns a non-429 response or the
// policy is exhausted. Transport errors are never retried.
func (c *Client) retryWithBackoff(ctx context.Context, policy RetryPolicy, reqFunc func() (*http.Response, error)) (*http.Response, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	observer := retryObserverFrom(ctx)

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt, policy.InitialBackoff)
			c.logger.Warn().
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("Rate limited, retrying")
			if observer != nil {
				observer(attempt+1, delay)
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, domain.NetworkError("retry wait interrupted", err)
			}
		}

		resp, err := reqFunc()
		if err != nil {
			return nil, domain.NetworkError("request failed", err)
		}

		if !shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		if resp.Body != nil {
			resp.Body.Close()
		}
	}

	return nil, domain.RateLimitError(fmt.Sprintf("still rate limited after %d attempts", attempts))
}

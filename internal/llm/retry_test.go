package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/spherical/image-analyzer/internal/domain"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{-1, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, time.Second); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	for _, status := range []int{200, 400, 401, 500, 502, 503} {
		if shouldRetry(status) {
			t.Errorf("status %d must not be retried", status)
		}
	}
	if !shouldRetry(http.StatusTooManyRequests) {
		t.Error("429 must be retried")
	}
}

func TestRetry_SucceedsAfterThreeRateLimits(t *testing.T) {
	srv := newScriptedServer(t, envelope("ok"), 429, 429, 429, 200)
	sleeper := &recordingSleeper{}
	client := newTestClient(srv.URL, sleeper)

	var observed []int
	ctx := ContextWithRetryObserver(context.Background(), func(attempt int, _ time.Duration) {
		observed = append(observed, attempt)
	})

	resp, err := client.call(ctx, "k", userTurn([]Part{{Text: "hi"}}, ""), VisionRetryPolicy())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if text, _ := resp.FirstText(); text != "ok" {
		t.Errorf("Expected ok, got %q", text)
	}
	if srv.count() != 4 {
		t.Errorf("Expected exactly 4 requests, got %d", srv.count())
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("Expected delays %v, got %v", want, sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("delay %d: want %v, got %v", i, want[i], sleeper.delays[i])
		}
	}
	if len(observed) != 3 || observed[0] != 2 || observed[2] != 4 {
		t.Errorf("Unexpected observed attempts %v", observed)
	}
}

func TestRetry_ExhaustsAfterFiveAttempts(t *testing.T) {
	srv := newScriptedServer(t, "", 429)
	sleeper := &recordingSleeper{}
	client := newTestClient(srv.URL, sleeper)

	_, err := client.call(context.Background(), "k", userTurn([]Part{{Text: "hi"}}, ""), VisionRetryPolicy())
	if !domain.IsType(err, domain.ErrorTypeRateLimit) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	if srv.count() != 5 {
		t.Errorf("Expected 5 requests, got %d", srv.count())
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("Expected delays %v, got %v", want, sleeper.delays)
	}
	for i := 1; i < len(sleeper.delays); i++ {
		if sleeper.delays[i] <= sleeper.delays[i-1] {
			t.Errorf("delays must strictly increase: %v", sleeper.delays)
		}
	}
}

func TestRetry_SingleAttemptSurfacesRateLimit(t *testing.T) {
	srv := newScriptedServer(t, "", 429)
	sleeper := &recordingSleeper{}
	client := newTestClient(srv.URL, sleeper)

	_, err := client.call(context.Background(), "k", userTurn([]Part{{Text: "hi"}}, ""), SingleAttempt())
	if !domain.IsType(err, domain.ErrorTypeRateLimit) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	if srv.count() != 1 || len(sleeper.delays) != 0 {
		t.Errorf("Expected one request and no waits, got %d requests, delays %v", srv.count(), sleeper.delays)
	}
}

func TestRetry_NetworkErrorIsNotRetried(t *testing.T) {
	client := newTestClient("http://unused", &recordingSleeper{})
	calls := 0

	_, err := client.retryWithBackoff(context.Background(), VisionRetryPolicy(), func() (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	if !domain.IsType(err, domain.ErrorTypeNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetry_CancelledWait(t *testing.T) {
	srv := newScriptedServer(t, "", 429)
	client := NewClient(srv.URL, "m", WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}))

	_, err := client.call(context.Background(), "k", userTurn([]Part{{Text: "hi"}}, ""), VisionRetryPolicy())
	if !domain.IsType(err, domain.ErrorTypeNetwork) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected wrapped cancellation, got %v", err)
	}
	if srv.count() != 1 {
		t.Errorf("Expected 1 request before cancellation, got %d", srv.count())
	}
}

func TestContextSleep(t *testing.T) {
	if err := contextSleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := contextSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

package llm

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/spherical/image-analyzer/internal/domain"
)

func TestSummarize(t *testing.T) {
	srv := newScriptedServer(t, envelope("A short receipt for bread."), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	summary, err := client.Summarize(context.Background(), "Pan 2,50", "VALID")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "A short receipt for bread." {
		t.Errorf("Expected verbatim text, got %q", summary)
	}

	req := srv.requests[0]
	if req.GenerationConfig != nil {
		t.Errorf("Summary request should not constrain the format, got %+v", req.GenerationConfig)
	}
	if !strings.Contains(req.Contents[0].Parts[0].Text, "Pan 2,50") {
		t.Error("Prompt should embed the extracted text")
	}
}

func TestDraftEmail(t *testing.T) {
	srv := newScriptedServer(t, envelope(`{"subject":"Receipt","body":"Bread 2.50"}`), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	draft, err := client.DraftEmail(context.Background(), "Pan 2,50", "VALID")
	if err != nil {
		t.Fatalf("DraftEmail failed: %v", err)
	}
	if draft.Subject != "Receipt" || draft.Body != "Bread 2.50" {
		t.Errorf("Unexpected draft %+v", draft)
	}
	if cfg := srv.requests[0].GenerationConfig; cfg == nil || cfg.ResponseMimeType != jsonMimeType {
		t.Errorf("Expected JSON response format, got %+v", cfg)
	}
}

func TestDraftEmail_Malformed(t *testing.T) {
	srv := newScriptedServer(t, envelope("Dear team, ..."), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	_, err := client.DraftEmail(context.Background(), "Pan 2,50", "VALID")
	if !domain.IsType(err, domain.ErrorTypeMalformed) {
		t.Fatalf("Expected malformed error, got %v", err)
	}
}

func TestDerived_NoRetryOnRateLimit(t *testing.T) {
	srv := newScriptedServer(t, "", http.StatusTooManyRequests)
	sleeper := &recordingSleeper{}
	client := newTestClient(srv.URL, sleeper)

	if _, err := client.Summarize(context.Background(), "text", "VALID"); !domain.IsType(err, domain.ErrorTypeRateLimit) {
		t.Errorf("Summarize: expected rate limit error, got %v", err)
	}
	if _, err := client.DraftEmail(context.Background(), "text", "VALID"); !domain.IsType(err, domain.ErrorTypeRateLimit) {
		t.Errorf("DraftEmail: expected rate limit error, got %v", err)
	}
	if srv.count() != 2 {
		t.Errorf("Expected one request per call, got %d", srv.count())
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("Expected no backoff, got %v", sleeper.delays)
	}
}

func TestDerived_Preconditions(t *testing.T) {
	srv := newScriptedServer(t, envelope("x"), http.StatusOK)
	client := newTestClient(srv.URL, &recordingSleeper{})

	if _, err := client.Summarize(context.Background(), "", "VALID"); !domain.IsType(err, domain.ErrorTypePrecondition) {
		t.Errorf("Expected precondition error for empty text, got %v", err)
	}
	if _, err := client.DraftEmail(context.Background(), "text", ""); !domain.IsType(err, domain.ErrorTypePrecondition) {
		t.Errorf("Expected precondition error for empty key, got %v", err)
	}
	if srv.count() != 0 {
		t.Errorf("Expected zero network calls, got %d", srv.count())
	}
}

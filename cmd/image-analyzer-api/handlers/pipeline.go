package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/imageinput"
)

const imageFormField = "image"

// AnalysisDTO is returned by the analyze endpoint.
type AnalysisDTO struct {
	Extraction *domain.ExtractionResult `json:"extraction"`
	Webhook    domain.WebhookStatus     `json:"webhook"`
}

// SummaryDTO is returned by the summary endpoint.
type SummaryDTO struct {
	Summary string `json:"summary"`
}

// EmailDraftDTO is returned by the email draft endpoint.
type EmailDraftDTO struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	ClipboardText string `json:"clipboardText"`
}

// Analyze handles POST /sessions/{sessionId}/analyze. The image is either a
// multipart "image" field or the raw request body. A raw application/pdf body
// is rendered and the page chosen by ?page= (default 1) is analyzed.
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	img, err := h.readImage(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, imageinput.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "invalid image", err.Error())
		return
	}

	if _, err := sess.Orchestrator.Analyze(r.Context(), img); err != nil {
		writeDomainError(w, "analysis failed", err)
		return
	}

	state := sess.Orchestrator.Snapshot()
	writeJSON(w, http.StatusOK, AnalysisDTO{
		Extraction: state.Extraction,
		Webhook:    state.Webhook,
	})
}

func (h *SessionHandler) readImage(r *http.Request) (*domain.Image, error) {
	var body io.Reader = r.Body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/pdf":
		return h.readPDFPage(r)
	case "multipart/form-data":
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, domain.IOError("invalid multipart body", err)
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, domain.IOError("missing \""+imageFormField+"\" field", nil)
			}
			if err != nil {
				return nil, domain.IOError("invalid multipart body", err)
			}
			if part.FormName() == imageFormField {
				body = part
				break
			}
		}
	}

	return imageinput.FromReader(body, h.maxUploadBytes)
}

func (h *SessionHandler) readPDFPage(r *http.Request) (*domain.Image, error) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, domain.IOError(fmt.Sprintf("invalid page %q", v), err)
		}
		page = n
	}

	data, err := imageinput.ReadLimited(r.Body, h.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	pages, err := imageinput.PDFFromBytes(r.Context(), data, imageinput.DefaultPDFQuality)
	if err != nil {
		return nil, err
	}
	if page > len(pages) {
		return nil, domain.IOError(fmt.Sprintf("page %d out of range (PDF has %d)", page, len(pages)), nil)
	}
	return pages[page-1], nil
}

// Summarize handles POST /sessions/{sessionId}/summarize.
func (h *SessionHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	summary, err := sess.Orchestrator.Summarize(r.Context())
	if err != nil {
		writeDomainError(w, "summary failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{Summary: summary})
}

// DraftEmail handles POST /sessions/{sessionId}/email-draft.
func (h *SessionHandler) DraftEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	draft, err := sess.Orchestrator.DraftEmail(r.Context())
	if err != nil {
		writeDomainError(w, "email draft failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EmailDraftDTO{
		Subject:       draft.Subject,
		Body:          draft.Body,
		ClipboardText: draft.ClipboardText(),
	})
}

package domain

import (
	"encoding/base64"
	"time"
)

// GuestUserID is used when the identity provider cannot sign the session in.
const GuestUserID = "guest"

// ExtractionResult is the structured output of one vision call.
type ExtractionResult struct {
	OriginalTitle string `json:"originalTitle"`
	OriginalText  string `json:"originalText"`
	EnglishTitle  string `json:"englishTitle"`
	EnglishText   string `json:"englishText"`
	ContentType   string `json:"contentType"`
	AIArtStyle    string `json:"aiArtStyle"`
}

// EmailDraft is a subject/body pair drafted from the extracted text.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClipboardText renders the draft the way it is copied out of the app.
func (d EmailDraft) ClipboardText() string {
	return "Subject: " + d.Subject + "\n\n" + d.Body
}

// Field mapping keys. The set is fixed.
const (
	FieldOriginalTitle = "originalTitle"
	FieldOriginalText  = "originalText"
	FieldEnglishTitle  = "englishTitle"
	FieldEnglishText   = "englishText"
	FieldContentType   = "contentType"
	FieldAIArtStyle    = "aiArtStyle"
	FieldSummary       = "summary"
	FieldEmailSubject  = "emailSubject"
	FieldEmailBody     = "emailBody"
)

// ContentFields lists the semantic fields in display order.
var ContentFields = []string{
	FieldOriginalTitle,
	FieldOriginalText,
	FieldEnglishTitle,
	FieldEnglishText,
	FieldContentType,
	FieldAIArtStyle,
	FieldSummary,
	FieldEmailSubject,
	FieldEmailBody,
}

// IsContentField reports whether name is one of the fixed mapping keys.
func IsContentField(name string) bool {
	for _, f := range ContentFields {
		if f == name {
			return true
		}
	}
	return false
}

// AppConfiguration is the per-user configuration document.
type AppConfiguration struct {
	APIKey        string            `json:"apiKey"`
	GoogleSheetID string            `json:"googleSheetId"`
	SheetName     string            `json:"sheetName"`
	FieldMappings map[string]string `json:"fieldMappings"`
	WebhookURL    string            `json:"webhookUrl"`
}

// DefaultFieldMappings returns every content field mapped to an empty column.
func DefaultFieldMappings() map[string]string {
	m := make(map[string]string, len(ContentFields))
	for _, f := range ContentFields {
		m[f] = ""
	}
	return m
}

// Normalize fills a missing mapping object so callers never see nil.
func (c AppConfiguration) Normalize() AppConfiguration {
	if c.FieldMappings == nil {
		c.FieldMappings = map[string]string{}
	}
	return c
}

// Clone returns a deep copy.
func (c AppConfiguration) Clone() AppConfiguration {
	out := c
	if c.FieldMappings != nil {
		out.FieldMappings = make(map[string]string, len(c.FieldMappings))
		for k, v := range c.FieldMappings {
			out.FieldMappings[k] = v
		}
	}
	return out
}

// Image is a single uploaded image awaiting extraction.
type Image struct {
	Data     []byte
	MimeType string
}

// Empty reports whether no image bytes are present.
func (i *Image) Empty() bool {
	return i == nil || len(i.Data) == 0
}

// Base64 encodes the image for inline transport.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// StageStatus tracks one pipeline stage.
type StageStatus string

const (
	StageIdle      StageStatus = "idle"
	StageInFlight  StageStatus = "in_flight"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// WebhookState is the dispatcher's observable state.
type WebhookState string

const (
	WebhookNone    WebhookState = ""
	WebhookSending WebhookState = "sending"
	WebhookSuccess WebhookState = "success"
	WebhookFailed  WebhookState = "failed"
)

// WebhookStatus is the message shown to the user about the last dispatch.
type WebhookStatus struct {
	State   WebhookState `json:"state"`
	Message string       `json:"message"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	EventAnalyzeStarted     EventType = "analyze_started"
	EventRetryScheduled     EventType = "retry_scheduled"
	EventExtractionComplete EventType = "extraction_complete"
	EventWebhookStatus      EventType = "webhook_status"
	EventSummaryComplete    EventType = "summary_complete"
	EventEmailDraftComplete EventType = "email_draft_complete"
	EventConfigUpdated      EventType = "config_updated"
	EventConfigSaved        EventType = "config_saved"
	EventError              EventType = "error"
)

// Event is emitted by the orchestrator as state changes.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

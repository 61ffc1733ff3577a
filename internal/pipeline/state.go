package pipeline

import "github.com/spherical/image-analyzer/internal/domain"

// Stage names a step of the pipeline.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageSummarize Stage = "summarize"
	StageDraft     Stage = "draft"
)

// StageState is the status of one stage plus the text of its last error.
type StageState struct {
	Status domain.StageStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// ConfigSurface tracks whether the configuration form is showing and
// whether the "saved" acknowledgment is visible.
type ConfigSurface struct {
	Open  bool `json:"open"`
	Saved bool `json:"saved"`
}

// State is everything a session renders.
type State struct {
	Extraction *domain.ExtractionResult `json:"extraction,omitempty"`
	Summary    string                   `json:"summary,omitempty"`
	EmailDraft *domain.EmailDraft       `json:"emailDraft,omitempty"`
	Webhook    domain.WebhookStatus     `json:"webhook"`

	Analyze   StageState `json:"analyze"`
	Summarize StageState `json:"summarize"`
	Draft     StageState `json:"draft"`

	ConfigSurface ConfigSurface           `json:"configSurface"`
	Config        domain.AppConfiguration `json:"-"`
	ConfigLoaded  bool                    `json:"configLoaded"`
}

func initialState() State {
	return State{
		Analyze:   StageState{Status: domain.StageIdle},
		Summarize: StageState{Status: domain.StageIdle},
		Draft:     StageState{Status: domain.StageIdle},
		Config:    domain.AppConfiguration{}.Normalize(),
	}
}

// clone deep-copies the state so callers can read it without the lock.
func (s State) clone() State {
	out := s
	if s.Extraction != nil {
		e := *s.Extraction
		out.Extraction = &e
	}
	if s.EmailDraft != nil {
		d := *s.EmailDraft
		out.EmailDraft = &d
	}
	out.Config = s.Config.Clone()
	return out
}

// CanAnalyze reports whether Analyze would pass its gate for a present image.
func (s State) CanAnalyze() bool {
	return s.Config.APIKey != "" && s.Analyze.Status != domain.StageInFlight
}

// CanDerive reports whether Summarize and DraftEmail are unlocked.
func (s State) CanDerive() bool {
	return s.Config.APIKey != "" &&
		s.Analyze.Status == domain.StageSucceeded &&
		s.Extraction != nil &&
		s.Extraction.OriginalText != ""
}

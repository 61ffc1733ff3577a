// Package pipeline sequences extraction, follow-up content and webhook
// delivery for a single session and tracks the resulting state.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spherical/image-analyzer/internal/configstore"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/llm"
	"github.com/spherical/image-analyzer/internal/observability"
)

// DefaultSavedDisplayDuration is how long the "saved" acknowledgment stays
// visible before the configuration surface closes.
const DefaultSavedDisplayDuration = 2 * time.Second

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Extractor    domain.Extractor
	Deriver      domain.ContentDeriver
	Notifier     domain.Notifier
	ConfigWriter domain.ConfigWriter
}

// Options tune an Orchestrator.
type Options struct {
	SavedDisplayDuration time.Duration
	// Events receives progress events. Sends never block; events are
	// dropped when the channel is full.
	Events chan<- domain.Event
	Logger *observability.Logger
}

// Orchestrator owns one session's transient results. The mutex is never
// held across a network call.
type Orchestrator struct {
	deps         Dependencies
	events       chan<- domain.Event
	logger       *observability.Logger
	savedDisplay time.Duration

	mu         sync.Mutex
	state      State
	generation int
	closeTimer *time.Timer
}

// New creates an Orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.SavedDisplayDuration <= 0 {
		opts.SavedDisplayDuration = DefaultSavedDisplayDuration
	}
	return &Orchestrator{
		deps:         deps,
		events:       opts.Events,
		logger:       opts.Logger,
		savedDisplay: opts.SavedDisplayDuration,
		state:        initialState(),
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Analyze runs a fresh extraction for image. Prior results are cleared
// before the call. On success the result is forwarded to the configured
// webhook; a webhook failure does not undo the extraction.
func (o *Orchestrator) Analyze(ctx context.Context, image *domain.Image) (*domain.ExtractionResult, error) {
	log := o.logger.WithOperation(string(StageAnalyze))

	o.mu.Lock()
	var gateErr error
	switch {
	case image.Empty():
		gateErr = domain.PreconditionError("no image selected")
	case o.state.Config.APIKey == "":
		gateErr = domain.PreconditionError("API key is not configured")
	case o.state.Analyze.Status == domain.StageInFlight:
		gateErr = domain.PreconditionError("an analysis is already in progress")
	}
	if gateErr != nil {
		o.mu.Unlock()
		log.Warn().Err(gateErr).Msg("Analyze not started")
		o.emitError(gateErr)
		return nil, gateErr
	}

	apiKey := o.state.Config.APIKey
	o.generation++
	gen := o.generation
	o.state.Extraction = nil
	o.state.Summary = ""
	o.state.EmailDraft = nil
	o.state.Webhook = domain.WebhookStatus{}
	o.state.Summarize = StageState{Status: domain.StageIdle}
	o.state.Draft = StageState{Status: domain.StageIdle}
	o.state.Analyze = StageState{Status: domain.StageInFlight}
	o.mu.Unlock()

	o.emit(domain.EventAnalyzeStarted, map[string]interface{}{
		"mimeType": image.MimeType,
		"bytes":    len(image.Data),
	})

	start := time.Now()
	callCtx := llm.ContextWithRetryObserver(ctx, func(attempt int, delay time.Duration) {
		o.emit(domain.EventRetryScheduled, map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		})
	})

	result, err := o.deps.Extractor.Extract(callCtx, image, apiKey)
	if err != nil {
		o.mu.Lock()
		if gen == o.generation {
			o.state.Analyze = StageState{Status: domain.StageFailed, Error: err.Error()}
		}
		o.mu.Unlock()

		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Extraction failed")
		o.emitError(err)
		return nil, err
	}

	o.mu.Lock()
	o.state.Extraction = result
	o.state.Analyze = StageState{Status: domain.StageSucceeded}
	webhookURL := o.state.Config.WebhookURL
	o.mu.Unlock()

	log.Info().
		Str("content_type", result.ContentType).
		Dur("duration", time.Since(start)).
		Msg("Extraction complete")
	o.emit(domain.EventExtractionComplete, *result)

	o.dispatch(ctx, webhookURL, result, log)

	return result, nil
}

// dispatch forwards result once and mirrors every status change into state.
func (o *Orchestrator) dispatch(ctx context.Context, url string, result *domain.ExtractionResult, log *observability.Logger) {
	if o.deps.Notifier == nil {
		return
	}
	_, err := o.deps.Notifier.Dispatch(ctx, url, result, func(st domain.WebhookStatus) {
		o.mu.Lock()
		o.state.Webhook = st
		o.mu.Unlock()
		o.emit(domain.EventWebhookStatus, st)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Webhook delivery failed")
	}
}

// Summarize replaces the summary of the current extraction.
func (o *Orchestrator) Summarize(ctx context.Context) (string, error) {
	text, apiKey, gen, err := o.beginDerived(StageSummarize)
	if err != nil {
		return "", err
	}

	summary, err := o.deps.Deriver.Summarize(ctx, text, apiKey)
	o.finishDerived(StageSummarize, gen, err, func() {
		o.state.Summary = summary
	})
	if err != nil {
		return "", err
	}

	o.emit(domain.EventSummaryComplete, summary)
	return summary, nil
}

// DraftEmail replaces the email draft of the current extraction.
func (o *Orchestrator) DraftEmail(ctx context.Context) (*domain.EmailDraft, error) {
	text, apiKey, gen, err := o.beginDerived(StageDraft)
	if err != nil {
		return nil, err
	}

	draft, err := o.deps.Deriver.DraftEmail(ctx, text, apiKey)
	o.finishDerived(StageDraft, gen, err, func() {
		o.state.EmailDraft = draft
	})
	if err != nil {
		return nil, err
	}

	o.emit(domain.EventEmailDraftComplete, *draft)
	out := *draft
	return &out, nil
}

// beginDerived applies the follow-up gate and marks the stage in flight.
func (o *Orchestrator) beginDerived(stage Stage) (text, apiKey string, gen int, err error) {
	o.mu.Lock()
	st := o.stageState(stage)
	switch {
	case !o.state.CanDerive() && o.state.Config.APIKey == "":
		err = domain.PreconditionError("API key is not configured")
	case !o.state.CanDerive():
		err = domain.PreconditionError("no extracted text available")
	case st.Status == domain.StageInFlight:
		err = domain.PreconditionError(fmt.Sprintf("%s is already in progress", stage))
	}
	if err != nil {
		o.mu.Unlock()
		o.logger.WithOperation(string(stage)).Warn().Err(err).Msg("Stage not started")
		o.emitError(err)
		return "", "", 0, err
	}

	text = o.state.Extraction.OriginalText
	apiKey = o.state.Config.APIKey
	gen = o.generation
	switch stage {
	case StageSummarize:
		o.state.Summary = ""
	case StageDraft:
		o.state.EmailDraft = nil
	}
	*st = StageState{Status: domain.StageInFlight}
	o.mu.Unlock()

	return text, apiKey, gen, nil
}

// finishDerived records the outcome unless a newer analysis replaced the
// extraction the stage was working from.
func (o *Orchestrator) finishDerived(stage Stage, gen int, err error, apply func()) {
	log := o.logger.WithOperation(string(stage))

	o.mu.Lock()
	stale := gen != o.generation
	if !stale {
		st := o.stageState(stage)
		if err != nil {
			*st = StageState{Status: domain.StageFailed, Error: err.Error()}
		} else {
			apply()
			*st = StageState{Status: domain.StageSucceeded}
		}
	}
	o.mu.Unlock()

	switch {
	case stale:
		log.Info().Msg("Discarding result for a superseded extraction")
	case err != nil:
		log.Error().Err(err).Msg("Stage failed")
		o.emitError(err)
	}
}

func (o *Orchestrator) stageState(stage Stage) *StageState {
	switch stage {
	case StageSummarize:
		return &o.state.Summarize
	case StageDraft:
		return &o.state.Draft
	default:
		return &o.state.Analyze
	}
}

// ApplyConfig overwrites the cached configuration with a snapshot.
func (o *Orchestrator) ApplyConfig(snap configstore.Snapshot) {
	if !snap.Exists {
		o.logger.Info().Msg("No configuration found")
		return
	}

	o.mu.Lock()
	o.state.Config = snap.Config.Normalize().Clone()
	o.state.ConfigLoaded = true
	o.mu.Unlock()

	o.logger.Debug().Msg("Configuration updated")
	o.emit(domain.EventConfigUpdated, nil)
}

// WatchConfig applies every snapshot until the stream closes or ctx ends.
func (o *Orchestrator) WatchConfig(ctx context.Context, snapshots <-chan configstore.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			o.ApplyConfig(snap)
		}
	}
}

// OpenConfig shows the configuration surface.
func (o *Orchestrator) OpenConfig() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.ConfigSurface = ConfigSurface{Open: true}
}

// CloseConfig hides the configuration surface.
func (o *Orchestrator) CloseConfig() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopCloseTimer()
	o.state.ConfigSurface = ConfigSurface{}
}

// SaveConfig overwrites the stored document. On success the "saved"
// acknowledgment shows for the display duration, then the surface closes.
func (o *Orchestrator) SaveConfig(ctx context.Context, cfg domain.AppConfiguration) error {
	if o.deps.ConfigWriter == nil {
		return domain.ConfigError("no configuration store", nil)
	}

	cfg = cfg.Normalize().Clone()
	if err := o.deps.ConfigWriter.Save(ctx, cfg); err != nil {
		o.logger.Error().Err(err).Msg("Saving configuration failed")
		o.emitError(err)
		return err
	}

	o.mu.Lock()
	o.state.Config = cfg
	o.state.ConfigLoaded = true
	o.state.ConfigSurface.Saved = true
	o.stopCloseTimer()
	o.closeTimer = time.AfterFunc(o.savedDisplay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.state.ConfigSurface = ConfigSurface{}
		o.closeTimer = nil
	})
	o.mu.Unlock()

	o.logger.Info().Msg("Configuration saved")
	o.emit(domain.EventConfigSaved, nil)
	return nil
}

// stopCloseTimer must be called with mu held.
func (o *Orchestrator) stopCloseTimer() {
	if o.closeTimer != nil {
		o.closeTimer.Stop()
		o.closeTimer = nil
	}
}

// Close stops pending timers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopCloseTimer()
}

// emit safely emits an event to the channel
func (o *Orchestrator) emit(eventType domain.EventType, payload interface{}) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- domain.Event{Type: eventType, Payload: payload, Timestamp: time.Now()}:
	default:
		o.logger.Warn().Str("event", string(eventType)).Msg("Event channel full, dropping event")
	}
}

func (o *Orchestrator) emitError(err error) {
	o.emit(domain.EventError, err.Error())
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/pipeline"
)

// ConfigurationDTO is the configuration as returned to clients. The API key
// is never echoed back in full.
type ConfigurationDTO struct {
	Document      string            `json:"document"`
	Loaded        bool              `json:"loaded"`
	APIKeySet     bool              `json:"apiKeySet"`
	APIKeyHint    string            `json:"apiKeyHint,omitempty"`
	WebhookURL    string            `json:"webhookUrl"`
	GoogleSheetID string            `json:"googleSheetId"`
	SheetName     string            `json:"sheetName"`
	FieldMappings map[string]string `json:"fieldMappings"`
}

// UpdateConfigurationDTO changes only the fields that are present. The
// whole document is still written back.
type UpdateConfigurationDTO struct {
	APIKey        *string           `json:"apiKey,omitempty"`
	WebhookURL    *string           `json:"webhookUrl,omitempty"`
	GoogleSheetID *string           `json:"googleSheetId,omitempty"`
	SheetName     *string           `json:"sheetName,omitempty"`
	FieldMappings map[string]string `json:"fieldMappings,omitempty"`
}

func toConfigurationDTO(path string, state pipeline.State) ConfigurationDTO {
	cfg := state.Config
	dto := ConfigurationDTO{
		Document:      path,
		Loaded:        state.ConfigLoaded,
		APIKeySet:     cfg.APIKey != "",
		WebhookURL:    cfg.WebhookURL,
		GoogleSheetID: cfg.GoogleSheetID,
		SheetName:     cfg.SheetName,
		FieldMappings: cfg.FieldMappings,
	}
	if n := len(cfg.APIKey); n > 4 {
		dto.APIKeyHint = "..." + cfg.APIKey[n-4:]
	}
	return dto
}

// apply merges the update into cfg.
func (u UpdateConfigurationDTO) apply(cfg domain.AppConfiguration) (domain.AppConfiguration, error) {
	for field := range u.FieldMappings {
		if !domain.IsContentField(field) {
			return cfg, fmt.Errorf("unknown field %q (valid: %s)", field, strings.Join(domain.ContentFields, ", "))
		}
	}

	cfg = cfg.Normalize().Clone()
	if u.APIKey != nil {
		cfg.APIKey = *u.APIKey
	}
	if u.WebhookURL != nil {
		cfg.WebhookURL = *u.WebhookURL
	}
	if u.GoogleSheetID != nil {
		cfg.GoogleSheetID = *u.GoogleSheetID
	}
	if u.SheetName != nil {
		cfg.SheetName = *u.SheetName
	}
	for field, column := range u.FieldMappings {
		cfg.FieldMappings[field] = column
	}
	return cfg, nil
}

// GetConfig handles GET /sessions/{sessionId}/config.
func (h *SessionHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toConfigurationDTO(sess.Document.Path(), sess.Orchestrator.Snapshot()))
}

// PutConfig handles PUT /sessions/{sessionId}/config.
func (h *SessionHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req UpdateConfigurationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg, err := req.apply(sess.Orchestrator.Snapshot().Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid field mapping", err.Error())
		return
	}

	if err := sess.Orchestrator.SaveConfig(r.Context(), cfg); err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Str("session_id", sess.ID).Msg("Saving configuration failed")
		writeDomainError(w, "failed to save configuration", err)
		return
	}

	writeJSON(w, http.StatusOK, toConfigurationDTO(sess.Document.Path(), sess.Orchestrator.Snapshot()))
}

// OpenConfig handles POST /sessions/{sessionId}/config/open.
func (h *SessionHandler) OpenConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sess.Orchestrator.OpenConfig()
	writeJSON(w, http.StatusOK, sess.Orchestrator.Snapshot().ConfigSurface)
}

// CloseConfig handles POST /sessions/{sessionId}/config/close.
func (h *SessionHandler) CloseConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sess.Orchestrator.CloseConfig()
	writeJSON(w, http.StatusOK, sess.Orchestrator.Snapshot().ConfigSurface)
}

// Package handlers provides HTTP handlers for the extraction API.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/platewise/extraction-engine/cmd/extraction-api/middleware"
	"github.com/platewise/extraction-engine/internal/domain"
	"github.com/platewise/extraction-engine/internal/extract"
	"github.com/platewise/extraction-engine/internal/observability"
	"github.com/platewise/extraction-engine/internal/sse"
)

// ExtractionHandler handles single-shot and streaming extraction requests.
type ExtractionHandler struct {
	logger       *observability.Logger
	orchestrator *extract.Orchestrator
}

// NewExtractionHandler creates a new extraction handler.
func NewExtractionHandler(logger *observability.Logger, orchestrator *extract.Orchestrator) *ExtractionHandler {
	return &ExtractionHandler{logger: logger, orchestrator: orchestrator}
}

// ExtractionRequestDTO represents the API request for both call shapes.
// Images are base64-encoded, already normalized by the upload layer.
type ExtractionRequestDTO struct {
	Mode   string   `json:"mode"` // url or images
	Source string   `json:"source,omitempty"`
	Images []string `json:"images,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
}

// ExtractionResponseDTO represents the single-shot API response. It is fully
// populated whether or not extraction succeeded; Success is the only field
// callers need to branch on.
type ExtractionResponseDTO struct {
	DraftID    string `json:"draftId"`
	AccessURL  string `json:"accessUrl"`
	ExpiresAt  string `json:"expiresAt"`
	TTLSeconds int    `json:"ttlSeconds"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
}

func (dto *ExtractionRequestDTO) toRequest() (extract.Request, error) {
	req := extract.Request{Mode: extract.Mode(dto.Mode)}
	if dto.Prompt != "" {
		req.Prompt = &dto.Prompt
	}
	switch req.Mode {
	case extract.ModeURL:
		if dto.Source == "" {
			return req, fmt.Errorf("source is required for url mode")
		}
		req.URL = dto.Source
	case extract.ModeImages:
		for i, enc := range dto.Images {
			img, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return req, fmt.Errorf("images[%d] is not valid base64", i)
			}
			req.Images = append(req.Images, img)
		}
	}
	return req, nil
}

// Extract handles POST /api/v1/extractions.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := middleware.OwnerID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "no authenticated owner")
		return
	}

	var dto ExtractionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var (
		outcome *domain.ExtractionOutcome
		err     error
	)
	switch extract.Mode(dto.Mode) {
	case extract.ModeURL:
		req, reqErr := dto.toRequest()
		if reqErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", reqErr.Error())
			return
		}
		outcome, err = h.orchestrator.ExtractFromURL(ctx, ownerID, req.URL, req.Prompt)
	case extract.ModeImages:
		req, reqErr := dto.toRequest()
		if reqErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", reqErr.Error())
			return
		}
		outcome, err = h.orchestrator.ExtractFromImages(ctx, ownerID, req.Images, req.Prompt)
	default:
		h.writeError(w, http.StatusBadRequest, string(domain.CodeInvalidMode), "mode must be url or images")
		return
	}
	if err != nil {
		// No draft/token pair exists; full detail stays server-side.
		h.logger.Error().Err(err).Msg("extraction failed before draft persistence")
		h.writeError(w, http.StatusInternalServerError, string(domain.CodeUnexpected), "extraction could not be completed")
		return
	}

	ttl := int(time.Until(outcome.Draft.ExpiresAt).Round(time.Second).Seconds())
	h.writeJSON(w, http.StatusOK, ExtractionResponseDTO{
		DraftID:    outcome.Draft.ID.String(),
		AccessURL:  fmt.Sprintf("/api/v1/drafts/%s?token=%s", outcome.Draft.ID, outcome.Token),
		ExpiresAt:  outcome.Draft.ExpiresAt.UTC().Format(time.RFC3339),
		TTLSeconds: ttl,
		Success:    outcome.Success,
		Message:    outcome.Message,
	})
}

// Stream handles POST /api/v1/extractions/stream, emitting SSE frames until
// the run's terminal event.
func (h *ExtractionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := middleware.OwnerID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "no authenticated owner")
		return
	}

	var dto ExtractionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.OwnerID = ownerID

	writer, err := sse.NewWriter(w)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, string(domain.CodeUnexpected), err.Error())
		return
	}

	for ev := range h.orchestrator.Stream(ctx, req) {
		if err := writer.WriteEvent(ev); err != nil {
			// Client gone or a frame over the ceiling; abandon the drain.
			// The run sees the cancelled context at its next suspension point.
			h.logger.Warn().Err(err).Msg("sse write failed, abandoning stream")
			return
		}
	}
}

func (h *ExtractionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("write response failed")
	}
}

func (h *ExtractionHandler) writeError(w http.ResponseWriter, status int, code, detail string) {
	h.writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}

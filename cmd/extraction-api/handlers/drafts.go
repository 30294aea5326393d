package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/cmd/extraction-api/middleware"
	"github.com/platewise/extraction-engine/internal/domain"
	"github.com/platewise/extraction-engine/internal/draft"
	"github.com/platewise/extraction-engine/internal/observability"
	"github.com/platewise/extraction-engine/internal/token"
)

// DraftHandler handles token-gated draft retrieval and owner-scoped deletion.
type DraftHandler struct {
	logger *observability.Logger
	store  draft.Store
	issuer *token.Issuer
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(logger *observability.Logger, store draft.Store, issuer *token.Issuer) *DraftHandler {
	return &DraftHandler{logger: logger, store: store, issuer: issuer}
}

// DraftDTO represents a draft in API responses.
type DraftDTO struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
	CreatedAt string         `json:"createdAt"`
	ExpiresAt string         `json:"expiresAt"`
}

// Get handles GET /api/v1/drafts/{draftID}?token=. The token is the access
// capability here, not the session: it must verify, name this exact draft,
// and the draft must still exist under the claimed owner. A verified token
// whose draft was deleted after issuance is rejected.
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	draftID, err := uuid.Parse(chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "malformed draft id")
		return
	}

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "token is required")
		return
	}

	verified, err := h.issuer.Verify(tokenString)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "invalid or expired token")
		return
	}
	if verified.DraftID != draftID {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "token does not match draft")
		return
	}

	d, err := h.store.Get(ctx, draftID, &verified.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "draft no longer available")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("draft lookup failed")
		h.writeError(w, http.StatusInternalServerError, string(domain.CodeUnexpected), "draft lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, DraftDTO{
		ID:        d.ID.String(),
		Kind:      string(d.Kind),
		Payload:   d.Payload,
		Source:    d.Source,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: d.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Delete handles DELETE /api/v1/drafts/{draftID}, scoped to the
// authenticated owner.
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := middleware.OwnerID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "no authenticated owner")
		return
	}

	draftID, err := uuid.Parse(chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "malformed draft id")
		return
	}

	deleted, err := h.store.Delete(ctx, draftID, &ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("draft delete failed")
		h.writeError(w, http.StatusInternalServerError, string(domain.CodeUnexpected), "draft delete failed")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "not_found", "draft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("write response failed")
	}
}

func (h *DraftHandler) writeError(w http.ResponseWriter, status int, code, detail string) {
	h.writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}

// Package domain defines the core types of the extraction engine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DraftKind discriminates what a draft payload holds.
type DraftKind string

const (
	// KindRecipe marks a draft whose payload is a converted recipe.
	KindRecipe DraftKind = "recipe"
	// KindRecipeFailure marks a draft whose payload encodes a typed
	// extraction failure.
	KindRecipeFailure DraftKind = "recipe_failure"
)

// SourceImages is the sentinel source reference for image uploads, where no
// originating URL exists.
const SourceImages = "images"

// DefaultDraftTTL bounds how long a draft survives before the sweep removes it.
const DefaultDraftTTL = time.Hour

// Draft is an ephemeral record holding AI-proposed content awaiting user
// confirmation. Drafts are immutable after creation except for deletion;
// ExpiresAt is fixed at CreatedAt + TTL and never moves.
type Draft struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Kind      DraftKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
	Prompt    *string        `json:"prompt,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the draft is past its TTL at the given instant.
func (d *Draft) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// ExtractionOutcome is the single-shot result of a pipeline run. Every field
// is populated whether or not extraction succeeded: a failed run still
// produces a failure draft and a token scoped to it, so callers branch on
// Success alone.
type ExtractionOutcome struct {
	Draft   *Draft
	Token   string
	Success bool
	Message string
}

// Pipeline step names as they appear in stream events. The URL and image
// variants report identical steps even though their first two stages differ
// internally.
const (
	StepStarted    = "started"
	StepFetching   = "fetching"
	StepSanitizing = "sanitizing"
	StepInferring  = "inferring"
	StepConverting = "converting"
	StepComplete   = "complete"
)

// StatusError is the human-facing phase label carried by terminal error
// events, whatever step they failed on.
const StatusError = "error"

// StreamEvent is one frame of a streaming extraction run. The terminal event
// (and only the terminal event) carries DraftID, Success and, on the error
// path, ErrorCode; it always has Progress == 1.0 and nothing follows it.
type StreamEvent struct {
	Step      string  `json:"step"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	DraftID   string  `json:"draft_id,omitempty"`
	Success   *bool   `json:"success,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// Terminal reports whether no further events may follow this one. Error
// terminals keep the failing stage's step name, so terminality is the
// complete step or a set error code, not a dedicated step.
func (e StreamEvent) Terminal() bool {
	return e.Step == StepComplete || e.ErrorCode != ""
}

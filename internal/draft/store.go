// Package draft persists ephemeral extraction drafts.
package draft

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
)

// CreateParams holds the inputs for creating a draft. TTL of zero falls back
// to domain.DefaultDraftTTL.
type CreateParams struct {
	OwnerID uuid.UUID
	Kind    domain.DraftKind
	Payload map[string]any
	Source  string
	Prompt  *string
	TTL     time.Duration
}

// Store persists TTL-bounded drafts. Implementations must treat drafts as
// immutable after creation: there is no update operation, only delete.
//
// Get and Delete take an optional owner filter; a non-nil owner restricts the
// operation to drafts belonging to that owner. Absent records surface as
// domain.ErrNotFound from Get and a false return from Delete.
type Store interface {
	// Create writes a new draft. Identical inputs always produce distinct
	// drafts with independently ticking TTLs; drafts are never deduplicated.
	Create(ctx context.Context, p CreateParams) (*domain.Draft, error)

	Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*domain.Draft, error)

	Delete(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (bool, error)

	// SweepExpired deletes every draft past its expiry and reports how many
	// went. Invoked by an external scheduler; must be safe to run
	// concurrently with normal traffic.
	SweepExpired(ctx context.Context) (int, error)
}

// ttl applies the default only for an unset TTL; negative values pass
// through so expired records can be seeded directly.
func (p CreateParams) ttl() time.Duration {
	if p.TTL == 0 {
		return domain.DefaultDraftTTL
	}
	return p.TTL
}

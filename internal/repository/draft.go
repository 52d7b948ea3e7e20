package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DraftRepository defines the persistence operations for the ephemeral
// draft_groups/draft_assignments tables. Rows here only exist for the
// duration of one matching run: TruncateAll is called at the start of every
// run before any candidate is persisted (spec 4.8 step 3 / spec 6).
type DraftRepository interface {
	// TruncateAll discards every draft row left over from a prior run.
	TruncateAll(ctx context.Context) error

	// CreateGroup persists one candidate DraftGroup and its assignments.
	CreateGroup(ctx context.Context, g *domain.DraftGroup) error

	// GetBySessionID returns every DraftGroup produced in a given session,
	// in the order they were created.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.DraftGroup, error)

	// MarkSelected flags the winning DraftGroup of a session, clearing the
	// flag from every other candidate in that session.
	MarkSelected(ctx context.Context, sessionID string, index int) error
}

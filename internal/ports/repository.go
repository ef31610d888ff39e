package ports

import (
	"context"
	"time"

	"positionGuard/internal/domain"
)

// ActionJournal stores an audit trail of the actions taken on positions.
type ActionJournal interface {
	// Record saves an action and returns its assigned ID.
	Record(ctx context.Context, action *domain.Action) (int64, error)
	// Recent retrieves the most recent actions, newest first, up to limit.
	Recent(ctx context.Context, limit int) ([]*domain.Action, error)
	// CountSince counts executed (non dry-run) actions created at or after since.
	CountSince(ctx context.Context, since time.Time) (int, error)
}

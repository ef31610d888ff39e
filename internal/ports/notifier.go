package ports

import (
	"context"

	"positionGuard/internal/domain"
)

// Notifier delivers operator alerts. Delivery is best effort: implementations
// log their own failures and never report them to the caller.
type Notifier interface {
	Notify(ctx context.Context, level domain.NotifyLevel, message string)
}

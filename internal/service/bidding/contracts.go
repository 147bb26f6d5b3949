package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/ports/dispatchtx"
)

// readRepository is the non-transactional read surface the engine needs.
type readRepository interface {
	ListDueBidWindows(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListAutoSelectDue(ctx context.Context, openedBefore, now time.Time) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

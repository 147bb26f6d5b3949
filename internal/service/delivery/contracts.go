package delivery

import (
	"context"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

type readRepository interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

// Dispatcher starts broadcast matching rounds.
type Dispatcher interface {
	Dispatch(ctx context.Context, deliveryID uuid.UUID) (domain.MatchResult, error)
}

// Auctioneer opens bid windows.
type Auctioneer interface {
	OpenWindow(ctx context.Context, deliveryID uuid.UUID) (*domain.Delivery, error)
}

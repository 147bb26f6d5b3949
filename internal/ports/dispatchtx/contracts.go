// Package dispatchtx declares the transactional storage contract shared by
// the matching, bidding and lifecycle services.
package dispatchtx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
)

// Repository is the set of operations available inside one transaction.
// Update methods taking a version implement the optimistic-concurrency
// check: they return false when the row moved on since it was read, which
// callers surface as a lost race.
type Repository interface {
	InsertDelivery(ctx context.Context, d *domain.Delivery) error
	GetDeliveryForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	UpdateDelivery(ctx context.Context, id uuid.UUID, version int64, ch domain.DeliveryChange) (bool, error)

	GetPartnerForUpdate(ctx context.Context, id int64) (*domain.Partner, error)
	AdjustPartnerActive(ctx context.Context, id int64, version int64, delta int) (bool, error)

	InsertAttempt(ctx context.Context, a *domain.MatchingAttempt) error
	ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error)
	RecordAttemptResponse(ctx context.Context, deliveryID uuid.UUID, partnerID int64, resp domain.ResponseType, reason string, requestID uuid.UUID, at time.Time) (bool, error)
	SupersedePending(ctx context.Context, deliveryID uuid.UUID, exceptPartnerID int64, at time.Time) (int64, error)

	InsertBid(ctx context.Context, b *domain.Bid) error
	GetOpenBid(ctx context.Context, deliveryID uuid.UUID, partnerID int64) (*domain.Bid, error)
	GetBid(ctx context.Context, bidID uuid.UUID) (*domain.Bid, error)
	ListBids(ctx context.Context, deliveryID uuid.UUID) ([]domain.Bid, error)
	CountOpenBidsByPartner(ctx context.Context, partnerID int64) (int, error)
	CountBids(ctx context.Context, deliveryID uuid.UUID) (int, error)
	UpdateBidStatus(ctx context.Context, bidID uuid.UUID, from, to domain.BidStatus, reason string) (bool, error)
	CloseOtherBids(ctx context.Context, deliveryID uuid.UUID, winnerID uuid.UUID, to domain.BidStatus, reason string) (int64, error)
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

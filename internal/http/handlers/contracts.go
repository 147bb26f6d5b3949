package handlers

import (
	"context"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/bidding"
	"service-dispatch/internal/service/delivery"
	"service-dispatch/internal/service/matching"
	"service-dispatch/internal/service/partner"
)

type partnerUsecase interface {
	Get(ctx context.Context, id int64) (*domain.Partner, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Partner, error)
	Create(ctx context.Context, p *domain.Partner) (int64, error)
	UpdatePartial(ctx context.Context, u domain.PartialPartnerUpdate) (bool, error)
	Heartbeat(ctx context.Context, id int64, loc domain.GeoPoint) error
}

// NewPartnerUsecase wires a partner.Service into a partnerUsecase.
func NewPartnerUsecase(service *partner.Service) partnerUsecase {
	return service
}

type deliveryUsecase interface {
	Create(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	Progress(ctx context.Context, id uuid.UUID, partnerID int64, to domain.DeliveryStatus) (*domain.Delivery, error)
	ListAttempts(ctx context.Context, id uuid.UUID) ([]domain.MatchingAttempt, error)
	ListBids(ctx context.Context, id uuid.UUID) ([]domain.Bid, error)
}

// NewDeliveryUsecase wires a delivery.Service into a deliveryUsecase.
func NewDeliveryUsecase(svc *delivery.Service) deliveryUsecase {
	return svc
}

type matchUsecase interface {
	Accept(ctx context.Context, deliveryID uuid.UUID, partnerID int64) (*domain.Delivery, error)
	Reject(ctx context.Context, deliveryID uuid.UUID, partnerID int64, reason string) error
}

// NewMatchUsecase wires a matching.Engine into a matchUsecase.
func NewMatchUsecase(e *matching.Engine) matchUsecase {
	return e
}

type bidUsecase interface {
	SubmitBid(ctx context.Context, req bidding.BidRequest) (*domain.Bid, error)
	WithdrawBid(ctx context.Context, bidID uuid.UUID, partnerID int64) error
}

// NewBidUsecase wires a bidding.Engine into a bidUsecase.
func NewBidUsecase(e *bidding.Engine) bidUsecase {
	return e
}

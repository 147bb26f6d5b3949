// Package delivery owns the delivery lifecycle: creation with a price
// estimate, kicking off matching or bidding, progress updates and
// cancellation.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/pricing"
)

// Service coordinates the delivery lifecycle.
type Service struct {
	repo    readRepository
	tx      txRunner
	pricer  *pricing.Engine
	card    pricing.RateCard
	matcher Dispatcher
	bidder  Auctioneer
	logger  logx.Logger
	now     func() time.Time
}

// NewService creates a delivery service.
func NewService(repo readRepository, tx txRunner, pricer *pricing.Engine, card pricing.RateCard, matcher Dispatcher, bidder Auctioneer, logger logx.Logger) *Service {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		pricer:  pricer,
		card:    card,
		matcher: matcher,
		bidder:  bidder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest carries the fields of a new delivery.
type CreateRequest struct {
	RequesterID   int64
	RequesterType domain.RequesterType
	Pickup        domain.Location
	Drop          domain.Location
	Package       domain.Package
	Priority      domain.Priority
	PoolRoute     bool
	OpenBidding   bool
}

func (r *CreateRequest) validate() error {
	if r.RequesterID <= 0 {
		return fmt.Errorf("%w: requester id", apperr.ErrInvalid)
	}
	if !r.RequesterType.Valid() {
		return fmt.Errorf("%w: requester type %q", apperr.ErrInvalid, r.RequesterType)
	}
	if r.Priority == "" {
		r.Priority = domain.PriorityASAP
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: priority %q", apperr.ErrInvalid, r.Priority)
	}
	if err := validatePoint(r.Pickup.GeoPoint); err != nil {
		return fmt.Errorf("%w: pickup", err)
	}
	if err := validatePoint(r.Drop.GeoPoint); err != nil {
		return fmt.Errorf("%w: drop", err)
	}
	if strings.TrimSpace(r.Pickup.Address) == "" || strings.TrimSpace(r.Drop.Address) == "" {
		return fmt.Errorf("%w: address required", apperr.ErrInvalid)
	}
	if r.Package.WeightKg <= 0 {
		return fmt.Errorf("%w: package weight", apperr.ErrInvalid)
	}
	return nil
}

func validatePoint(p domain.GeoPoint) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return apperr.ErrInvalid
	}
	return nil
}

// Create stores a new delivery with its price estimate and immediately
// starts matching: a dispatch round for the broadcast flow, a bid window
// when open bidding was requested. A dispatch round that finds nobody does
// not fail the create; retries run through the sweeper and the worker.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Delivery, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	distance := geo.HaversineKm(req.Pickup.GeoPoint, req.Drop.GeoPoint)
	estimate, err := s.pricer.Estimate(distance, req.Package.WeightKg, s.card)
	if err != nil {
		return nil, err
	}

	d := &domain.Delivery{
		ID:             uuid.New(),
		RequesterID:    req.RequesterID,
		RequesterType:  req.RequesterType,
		Pickup:         req.Pickup,
		Drop:           req.Drop,
		Package:        req.Package,
		Priority:       req.Priority,
		PoolRoute:      req.PoolRoute,
		Status:         domain.StatusCreated,
		EstimatedPrice: estimate,
		DistanceKm:     distance,
	}

	err = s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.InsertDelivery(ctx, d); err != nil {
			return err
		}
		ok, err := tx.UpdateDelivery(ctx, d.ID, d.Version, domain.DeliveryChange{Status: domain.StatusMatching})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		d.Status = domain.StatusMatching
		d.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery created",
		logx.String("event", "delivery_created"),
		logx.String("delivery_id", d.ID.String()),
		logx.String("estimate", estimate.StringFixed(2)),
		logx.Float64("distance_km", distance),
		logx.Bool("open_bidding", req.OpenBidding),
	)

	if req.OpenBidding {
		if opened, err := s.bidder.OpenWindow(ctx, d.ID); err != nil {
			s.logger.Error("open bid window", logx.String("delivery_id", d.ID.String()), logx.Any("error", err))
		} else {
			d = opened
		}
		return d, nil
	}

	if _, err := s.matcher.Dispatch(ctx, d.ID); err != nil && !errors.Is(err, apperr.ErrNoPartnersAvailable) {
		s.logger.Error("initial dispatch", logx.String("delivery_id", d.ID.String()), logx.Any("error", err))
	}
	if cur, err := s.repo.GetDelivery(ctx, d.ID); err == nil && cur != nil {
		d = cur
	}
	return d, nil
}

// Get returns a delivery by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	d, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

// ListAttempts returns the notification log of a delivery.
func (s *Service) ListAttempts(ctx context.Context, id uuid.UUID) ([]domain.MatchingAttempt, error) {
	return s.repo.ListAttempts(ctx, id)
}

// ListBids returns all bids placed on a delivery.
func (s *Service) ListBids(ctx context.Context, id uuid.UUID) ([]domain.Bid, error) {
	var out []domain.Bid
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListBids(ctx, id)
		return err
	})
	return out, err
}

// StartMatching moves a freshly created delivery into MATCHING and runs a
// dispatch round. Used by the event worker; safe to call again after a
// redelivery.
func (s *Service) StartMatching(ctx context.Context, id uuid.UUID) error {
	var skip bool
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		switch cur.Status {
		case domain.StatusCreated:
			ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{Status: domain.StatusMatching})
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrConflict
			}
			return nil
		case domain.StatusMatching:
			// bid-mode deliveries are settled by the window close, not
			// by dispatch rounds
			skip = cur.BidWindowClosesAt != nil
			return nil
		default:
			return apperr.ErrAlreadyAssigned
		}
	})
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	_, err = s.matcher.Dispatch(ctx, id)
	if errors.Is(err, apperr.ErrNoPartnersAvailable) || errors.Is(err, apperr.ErrConflict) {
		return nil
	}
	return err
}

// Cancel terminates a non-terminal delivery and releases the assigned
// partner's capacity. Cancelling an already cancelled delivery is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		if cur.Status == domain.StatusCancelled {
			return nil
		}
		if cur.Status.Terminal() {
			return apperr.ErrInvalidTransition
		}

		now := s.now()
		if cur.AssignedPartnerID != nil && cur.Status != domain.StatusAssigned {
			if err := releaseCapacity(ctx, tx, *cur.AssignedPartnerID); err != nil {
				return err
			}
		}
		if cur.Status == domain.StatusAssigned {
			if _, err := tx.SupersedePending(ctx, id, 0, now); err != nil {
				return err
			}
		}
		if cur.BidWindowClosesAt != nil {
			if _, err := tx.CloseOtherBids(ctx, id, uuid.Nil, domain.BidExpired, "delivery_cancelled"); err != nil {
				return err
			}
		}

		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:         domain.StatusCancelled,
			ClearAssigned:  true,
			ClearBidWindow: true,
			CancelReason:   &reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("delivery cancelled",
		logx.String("event", "delivery_cancelled"),
		logx.String("delivery_id", id.String()),
		logx.String("reason", reason),
	)
	return nil
}

// Progress advances an accepted delivery along the leg sequence
// accepted → picked_up → in_transit → delivered. Only the assigned partner
// may report progress; delivery completion releases capacity and settles
// the final price.
func (s *Service) Progress(ctx context.Context, id uuid.UUID, partnerID int64, to domain.DeliveryStatus) (*domain.Delivery, error) {
	if to != domain.StatusPickedUp && to != domain.StatusInTransit && to != domain.StatusDelivered {
		return nil, fmt.Errorf("%w: status %q", apperr.ErrInvalid, to)
	}

	var out *domain.Delivery
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		if cur.Status == domain.StatusCancelled {
			return apperr.ErrDeliveryCancelled
		}
		if cur.AssignedPartnerID == nil || *cur.AssignedPartnerID != partnerID {
			return apperr.ErrConflict
		}
		if !cur.Status.CanTransition(to) {
			return apperr.ErrInvalidTransition
		}

		ch := domain.DeliveryChange{Status: to}
		if to == domain.StatusDelivered {
			if err := releaseCapacity(ctx, tx, partnerID); err != nil {
				return err
			}
			if cur.FinalPrice == nil {
				price := cur.EstimatedPrice
				ch.FinalPrice = &price
			}
		}

		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, ch)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}

		next := *cur
		next.Status = to
		next.Version = cur.Version + 1
		if ch.FinalPrice != nil {
			next.FinalPrice = ch.FinalPrice
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery progressed",
		logx.String("delivery_id", id.String()),
		logx.Int64("partner_id", partnerID),
		logx.String("status", string(to)),
	)
	return out, nil
}

func releaseCapacity(ctx context.Context, tx dispatchtx.Repository, partnerID int64) error {
	p, err := tx.GetPartnerForUpdate(ctx, partnerID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	ok, err := tx.AdjustPartnerActive(ctx, p.ID, p.Version, -1)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrConflict
	}
	return nil
}

// Package bidding runs the open-auction alternative to broadcast matching:
// a bid window is opened on the delivery, partners place offers, and the
// window close picks the winner.
package bidding

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/ports/dispatchtx"
)

// Counters groups the auction metrics. Nil counters are skipped.
type Counters struct {
	Placed   prometheus.Counter
	Closed   prometheus.Counter
	Reopened prometheus.Counter
}

// Engine manages bid windows and offers.
type Engine struct {
	repo     readRepository
	tx       txRunner
	notifier notify.Notifier
	cfg      domain.BiddingConfig
	counters Counters
	logger   logx.Logger
	now      func() time.Time
}

// NewEngine creates a bidding engine.
func NewEngine(repo readRepository, tx txRunner, notifier notify.Notifier, cfg domain.BiddingConfig, counters Counters, logger logx.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Nop()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Engine{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		cfg:      cfg,
		counters: counters,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenWindow opens the bid window on a delivery sitting in MATCHING. Opening
// an already open window is a conflict.
func (e *Engine) OpenWindow(ctx context.Context, deliveryID uuid.UUID) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		if cur.Status != domain.StatusMatching {
			return apperr.ErrConflict
		}
		if cur.BidWindowClosesAt != nil {
			return apperr.ErrConflict
		}

		now := e.now()
		closes := now.Add(e.cfg.Window())
		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:            domain.StatusMatching,
			BidWindowOpensAt:  &now,
			BidWindowClosesAt: &closes,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}

		next := *cur
		next.BidWindowOpensAt = &now
		next.BidWindowClosesAt = &closes
		next.Version = cur.Version + 1
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("bid window opened",
		logx.String("delivery_id", deliveryID.String()),
		logx.Time("closes_at", *out.BidWindowClosesAt),
	)
	return out, nil
}

// BidRequest is a partner's offer for an open window.
type BidRequest struct {
	DeliveryID         uuid.UUID
	PartnerID          int64
	Amount             decimal.Decimal
	Notes              string
	Location           domain.GeoPoint
	EstPickupMinutes   int
	EstDeliveryMinutes int
	RequestID          uuid.UUID
}

// SubmitBid places an offer inside an open window. A retry carrying the same
// request id returns the already stored bid. An amount above the configured
// maximum rate is stored but flagged and never auto-selected; an amount
// below the minimum is rejected outright.
func (e *Engine) SubmitBid(ctx context.Context, req BidRequest) (*domain.Bid, error) {
	if req.Amount.Sign() <= 0 {
		return nil, apperr.ErrInvalid
	}

	var out *domain.Bid
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, req.DeliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		if cur.Status == domain.StatusCancelled {
			return apperr.ErrDeliveryCancelled
		}
		now := e.now()
		if !cur.BidWindowOpen(now) {
			return apperr.ErrWindowClosed
		}

		existing, err := tx.GetOpenBid(ctx, req.DeliveryID, req.PartnerID)
		if err != nil {
			return err
		}
		if existing != nil {
			if req.RequestID != uuid.Nil && existing.RequestID == req.RequestID {
				out = existing
				return nil
			}
			return apperr.ErrDuplicateBid
		}

		total, err := tx.CountBids(ctx, req.DeliveryID)
		if err != nil {
			return err
		}
		if e.cfg.MaxBidsPerDelivery > 0 && total >= e.cfg.MaxBidsPerDelivery {
			return apperr.ErrBidLimitReached
		}
		open, err := tx.CountOpenBidsByPartner(ctx, req.PartnerID)
		if err != nil {
			return err
		}
		if e.cfg.MaxActiveBidsPerPartner > 0 && open >= e.cfg.MaxActiveBidsPerPartner {
			return apperr.ErrBidLimitReached
		}

		p, err := tx.GetPartnerForUpdate(ctx, req.PartnerID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.ErrNotFound
		}
		if !p.Online {
			return apperr.ErrInvalid
		}
		if !p.HasCapacity() {
			return apperr.ErrCapacityExceeded
		}

		// out-of-range bids are recorded for the requester to see but
		// never picked by auto-selection
		min, max := e.cfg.Bounds(cur.EstimatedPrice)
		outOfRange := req.Amount.Cmp(min) < 0 || req.Amount.Cmp(max) > 0

		loc := req.Location
		if loc == (domain.GeoPoint{}) && p.LastLocation != nil {
			loc = *p.LastLocation
		}

		b := &domain.Bid{
			ID:                 uuid.New(),
			DeliveryID:         req.DeliveryID,
			PartnerID:          req.PartnerID,
			Amount:             req.Amount,
			Notes:              req.Notes,
			Location:           loc,
			DistanceToPickupKm: geo.HaversineKm(loc, cur.Pickup.GeoPoint),
			EstPickupMinutes:   req.EstPickupMinutes,
			EstDeliveryMinutes: req.EstDeliveryMinutes,
			Status:             domain.BidPending,
			ExceedsMaxRate:     outOfRange,
			RequestID:          req.RequestID,
			ExpiresAt:          *cur.BidWindowClosesAt,
			CreatedAt:          now,
		}
		if err := tx.InsertBid(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	inc(e.counters.Placed)
	e.logger.Info("bid placed",
		logx.String("delivery_id", req.DeliveryID.String()),
		logx.Int64("partner_id", req.PartnerID),
		logx.String("amount", out.Amount.StringFixed(2)),
		logx.Bool("exceeds_max_rate", out.ExceedsMaxRate),
	)
	return out, nil
}

// WithdrawBid retracts a pending bid. Withdrawing an already withdrawn bid
// is a no-op.
func (e *Engine) WithdrawBid(ctx context.Context, bidID uuid.UUID, partnerID int64) error {
	return e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		b, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if b == nil {
			return apperr.ErrNotFound
		}
		if b.PartnerID != partnerID {
			return apperr.ErrConflict
		}
		if b.Status == domain.BidWithdrawn {
			return nil
		}
		if b.Status != domain.BidPending {
			return apperr.ErrConflict
		}
		ok, err := tx.UpdateBidStatus(ctx, bidID, domain.BidPending, domain.BidWithdrawn, "withdrawn_by_partner")
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		return nil
	})
}

// CloseWindow settles an open bid window: the lowest valid bid wins, ties
// broken by earliest submission then lowest partner id. With no valid bids
// the window re-opens once (when configured) and after that the delivery is
// marked FAILED with apperr.ErrNoBidsReceived.
func (e *Engine) CloseWindow(ctx context.Context, deliveryID uuid.UUID) (*domain.Bid, error) {
	var (
		winner   *domain.Bid
		losers   []int64
		reopened bool
		failed   bool
	)
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		if cur.Status != domain.StatusMatching || cur.BidWindowClosesAt == nil {
			return apperr.ErrWindowAlreadyClosed
		}

		bids, err := tx.ListBids(ctx, deliveryID)
		if err != nil {
			return err
		}
		valid := validBids(bids)
		sortBids(valid)

		now := e.now()
		for _, b := range valid {
			p, err := tx.GetPartnerForUpdate(ctx, b.PartnerID)
			if err != nil {
				return err
			}
			if p == nil || !p.Online || !p.HasCapacity() {
				if _, err := tx.UpdateBidStatus(ctx, b.ID, domain.BidPending, domain.BidRejected, "partner_unavailable"); err != nil {
					return err
				}
				continue
			}

			ok, err := tx.UpdateBidStatus(ctx, b.ID, domain.BidPending, domain.BidAccepted, "")
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := tx.CloseOtherBids(ctx, deliveryID, b.ID, domain.BidRejected, "not_selected"); err != nil {
				return err
			}
			ok, err = tx.AdjustPartnerActive(ctx, p.ID, p.Version, 1)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrConflict
			}
			amount := b.Amount
			pid := b.PartnerID
			ok, err = tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
				Status:            domain.StatusAccepted,
				AssignedPartnerID: &pid,
				FinalPrice:        &amount,
				ClearBidWindow:    true,
			})
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrAlreadyAssigned
			}

			win := b
			winner = &win
			for _, o := range bids {
				if o.PartnerID != b.PartnerID && o.Status == domain.BidPending {
					losers = append(losers, o.PartnerID)
				}
			}
			return nil
		}

		// no usable bid
		if _, err := tx.CloseOtherBids(ctx, deliveryID, uuid.Nil, domain.BidExpired, "window_closed"); err != nil {
			return err
		}
		if e.cfg.RetryWindowOnNoBids && !cur.BidWindowReopened {
			closes := now.Add(e.cfg.Window())
			ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
				Status:            domain.StatusMatching,
				BidWindowOpensAt:  &now,
				BidWindowClosesAt: &closes,
				MarkWindowReopen:  true,
			})
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrConflict
			}
			reopened = true
			return nil
		}

		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:         domain.StatusFailed,
			ClearBidWindow: true,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		failed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	inc(e.counters.Closed)

	switch {
	case winner != nil:
		e.notifier.BidWon(ctx, deliveryID, winner.PartnerID, winner.Amount)
		for _, pid := range losers {
			e.notifier.BidLost(ctx, deliveryID, pid)
		}
		e.logger.Info("bid window settled",
			logx.String("event", "bid_won"),
			logx.String("delivery_id", deliveryID.String()),
			logx.Int64("partner_id", winner.PartnerID),
			logx.String("amount", winner.Amount.StringFixed(2)),
			logx.Int("losers", len(losers)),
		)
		return winner, nil
	case reopened:
		inc(e.counters.Reopened)
		e.logger.Info("bid window reopened",
			logx.String("delivery_id", deliveryID.String()),
		)
		return nil, nil
	case failed:
		e.notifier.DeliveryFailed(ctx, deliveryID, "no_bids_received")
		e.logger.Warn("bid window failed, no bids",
			logx.String("delivery_id", deliveryID.String()),
		)
		return nil, apperr.ErrNoBidsReceived
	}
	return nil, nil
}

// CloseDue settles every window that has expired and, when auto-select is
// on, windows that already collected a valid bid and sat open past the
// auto-select delay. Returns how many windows were settled.
func (e *Engine) CloseDue(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.repo.ListDueBidWindows(ctx, now)
	if err != nil {
		return 0, err
	}
	if e.cfg.AutoSelectLowest && e.cfg.AutoSelectAfterMinutes > 0 {
		cutoff := now.Add(-time.Duration(e.cfg.AutoSelectAfterMinutes) * time.Minute)
		early, err := e.repo.ListAutoSelectDue(ctx, cutoff, now)
		if err != nil {
			return 0, err
		}
		due = append(due, early...)
	}

	closed := 0
	seen := make(map[uuid.UUID]bool, len(due))
	for _, id := range due {
		if seen[id] {
			continue
		}
		seen[id] = true
		_, err := e.CloseWindow(ctx, id)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, apperr.ErrNoBidsReceived):
			closed++
		case errors.Is(err, apperr.ErrWindowAlreadyClosed):
		default:
			e.logger.Error("close bid window",
				logx.String("delivery_id", id.String()),
				logx.Any("error", err),
			)
		}
	}
	return closed, nil
}

// validBids keeps pending bids that are eligible for selection.
func validBids(bids []domain.Bid) []domain.Bid {
	out := make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		if b.Status == domain.BidPending && !b.ExceedsMaxRate {
			out = append(out, b)
		}
	}
	return out
}

// sortBids orders candidates by amount asc, submission time asc, partner id
// asc, making the winner deterministic for identical inputs.
func sortBids(bids []domain.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if c := bids[i].Amount.Cmp(bids[j].Amount); c != 0 {
			return c < 0
		}
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].PartnerID < bids[j].PartnerID
	})
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

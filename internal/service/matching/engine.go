// Package matching runs the partner dispatch rounds: shortlist nearby
// partners, notify them, and settle accept/reject/timeout responses.
package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/servicearea"
)

// Counters groups the dispatch metrics. Nil counters are skipped.
type Counters struct {
	Rounds   prometheus.Counter
	Assigned prometheus.Counter
	Failed   prometheus.Counter
	Expired  prometheus.Counter
}

// Engine dispatches deliveries to partners.
type Engine struct {
	repo     readRepository
	tx       txRunner
	index    geoIndex
	resolver servicearea.PincodeResolver
	notifier notify.Notifier
	cfg      config.Matching
	counters Counters
	logger   logx.Logger
	now      func() time.Time
}

// NewEngine creates a matching engine.
func NewEngine(repo readRepository, tx txRunner, index geoIndex, resolver servicearea.PincodeResolver, notifier notify.Notifier, cfg config.Matching, counters Counters, logger logx.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Nop()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if cfg.BroadcastSize < 1 {
		cfg.BroadcastSize = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Minute
	}
	return &Engine{
		repo:     repo,
		tx:       tx,
		index:    index,
		resolver: resolver,
		notifier: notifier,
		cfg:      cfg,
		counters: counters,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ranked struct {
	partnerID  int64
	distanceKm float64
	rating     float64
}

// Dispatch runs one matching round for the delivery: shortlist partners
// within the radius, rank them, write notification rows and move the
// delivery to ASSIGNED. An empty round still burns an attempt; when the
// attempt budget is spent the delivery is marked FAILED and
// apperr.ErrNoPartnersAvailable comes back.
func (e *Engine) Dispatch(ctx context.Context, deliveryID uuid.UUID) (domain.MatchResult, error) {
	// shortlist building is read-only and runs outside the transaction;
	// the transaction re-reads the delivery before writing.
	d, err := e.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		return domain.MatchResult{}, err
	}
	if d == nil {
		return domain.MatchResult{}, apperr.ErrNotFound
	}
	if d.Status != domain.StatusMatching {
		return domain.MatchResult{}, apperr.ErrConflict
	}

	eligible, err := e.shortlist(ctx, d)
	if err != nil {
		return domain.MatchResult{}, err
	}

	var (
		res    domain.MatchResult
		failed bool
	)
	err = e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
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
		if cur.MatchingAttempts >= e.cfg.MaxAttempts {
			ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{Status: domain.StatusFailed})
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrConflict
			}
			failed = true
			res = domain.MatchResult{DeliveryID: cur.ID, Attempt: cur.MatchingAttempts}
			return nil
		}

		attempts, err := tx.ListAttempts(ctx, deliveryID)
		if err != nil {
			return err
		}
		excluded := excludedPartners(attempts)

		attempt := cur.MatchingAttempts + 1
		picked := pick(eligible, excluded, e.cfg.BroadcastSize)
		if len(picked) == 0 {
			ch := domain.DeliveryChange{Status: domain.StatusMatching, IncAttempts: true}
			if attempt >= e.cfg.MaxAttempts {
				ch.Status = domain.StatusFailed
				failed = true
			}
			ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, ch)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrConflict
			}
			res = domain.MatchResult{DeliveryID: cur.ID, Attempt: attempt}
			return nil
		}

		now := e.now()
		notified := make([]int64, 0, len(picked))
		for _, c := range picked {
			a := &domain.MatchingAttempt{
				DeliveryID: cur.ID,
				PartnerID:  c.partnerID,
				Attempt:    attempt,
				NotifiedAt: now,
				RequestID:  uuid.New(),
			}
			if err := tx.InsertAttempt(ctx, a); err != nil {
				return err
			}
			notified = append(notified, c.partnerID)
		}

		top := picked[0].partnerID
		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:            domain.StatusAssigned,
			AssignedPartnerID: &top,
			IncAttempts:       true,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}

		res = domain.MatchResult{
			DeliveryID: cur.ID,
			Attempt:    attempt,
			Notified:   notified,
			AssignedTo: top,
		}
		return nil
	})
	if err != nil {
		return domain.MatchResult{}, err
	}

	inc(e.counters.Rounds)

	if failed {
		inc(e.counters.Failed)
		e.notifier.DeliveryFailed(ctx, deliveryID, "no_partners_available")
		e.logger.Warn("delivery failed, attempts exhausted",
			logx.String("delivery_id", deliveryID.String()),
			logx.Int("attempts", res.Attempt),
		)
		return res, apperr.ErrNoPartnersAvailable
	}
	if len(res.Notified) == 0 {
		e.logger.Info("dispatch round found no partners",
			logx.String("delivery_id", deliveryID.String()),
			logx.Int("attempt", res.Attempt),
		)
		return res, apperr.ErrNoPartnersAvailable
	}

	for _, pid := range res.Notified {
		e.notifier.PartnerNotified(ctx, deliveryID, pid, res.Attempt)
	}
	e.logger.Info("partners notified",
		logx.String("event", "dispatch_round"),
		logx.String("delivery_id", deliveryID.String()),
		logx.Int("attempt", res.Attempt),
		logx.Int("notified", len(res.Notified)),
		logx.Int64("top_partner_id", res.AssignedTo),
	)
	return res, nil
}

// shortlist queries the spatial index around the pickup and drops partners
// that are offline, out of capacity or whose service area does not cover the
// delivery. The result is ranked: distance asc, rating desc, id asc.
func (e *Engine) shortlist(ctx context.Context, d *domain.Delivery) ([]ranked, error) {
	candidates, err := e.index.Near(ctx, d.Pickup.GeoPoint, e.cfg.RadiusKm)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(candidates))
	distance := make(map[int64]float64, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.PartnerID)
		distance[c.PartnerID] = c.DistanceKm
	}

	partners, err := e.repo.GetPartners(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ranked, 0, len(partners))
	for i := range partners {
		p := &partners[i]
		if !p.Online || !p.HasCapacity() {
			continue
		}
		ok, err := servicearea.CoversDelivery(ctx, p.ServiceArea, d.Pickup, d.Drop, e.resolver)
		if err != nil {
			e.logger.Warn("service area check failed",
				logx.Int64("partner_id", p.ID),
				logx.Any("error", err),
			)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, ranked{
			partnerID:  p.ID,
			distanceKm: distance[p.ID],
			rating:     p.Rating,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].distanceKm != out[j].distanceKm {
			return out[i].distanceKm < out[j].distanceKm
		}
		if out[i].rating != out[j].rating {
			return out[i].rating > out[j].rating
		}
		return out[i].partnerID < out[j].partnerID
	})
	return out, nil
}

// excludedPartners collects partners that must not be re-notified: anyone
// with a pending, rejected or timed-out row. A superseded partner lost a
// broadcast race and stays eligible for later rounds.
func excludedPartners(attempts []domain.MatchingAttempt) map[int64]bool {
	out := make(map[int64]bool, len(attempts))
	for _, a := range attempts {
		switch a.Response {
		case domain.ResponseNone, domain.ResponseRejected, domain.ResponseTimeout:
			out[a.PartnerID] = true
		}
	}
	return out
}

func pick(eligible []ranked, excluded map[int64]bool, n int) []ranked {
	out := make([]ranked, 0, n)
	for _, c := range eligible {
		if excluded[c.partnerID] {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

// Accept settles a partner's acceptance of a match notification. A repeated
// accept by the winning partner succeeds without side effects; anyone else
// gets apperr.ErrAlreadyAssigned.
func (e *Engine) Accept(ctx context.Context, deliveryID uuid.UUID, partnerID int64) (*domain.Delivery, error) {
	var (
		out      *domain.Delivery
		assigned bool
	)
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}

		switch cur.Status {
		case domain.StatusCancelled:
			return apperr.ErrDeliveryCancelled
		case domain.StatusFailed:
			return apperr.ErrInvalidTransition
		case domain.StatusAccepted, domain.StatusPickedUp, domain.StatusInTransit, domain.StatusDelivered:
			if cur.AssignedPartnerID != nil && *cur.AssignedPartnerID == partnerID {
				out = cur
				return nil
			}
			return apperr.ErrAlreadyAssigned
		case domain.StatusMatching, domain.StatusCreated:
			return apperr.ErrWindowClosed
		case domain.StatusAssigned:
		default:
			return apperr.ErrConflict
		}

		attempts, err := tx.ListAttempts(ctx, deliveryID)
		if err != nil {
			return err
		}
		pending := findPending(attempts, partnerID, cur.MatchingAttempts)
		if pending == nil {
			return apperr.ErrConflict
		}

		now := e.now()
		if now.After(pending.NotifiedAt.Add(e.cfg.AcceptTTL)) {
			// too late: consume the notification and release the slot
			if _, err := tx.RecordAttemptResponse(ctx, deliveryID, partnerID, domain.ResponseTimeout, "accept_ttl_expired", uuid.Nil, now); err != nil {
				return err
			}
			if !anyOtherPending(attempts, partnerID, cur.MatchingAttempts) {
				ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
					Status:        domain.StatusMatching,
					ClearAssigned: true,
				})
				if err != nil {
					return err
				}
				if !ok {
					return apperr.ErrConflict
				}
			}
			return apperr.ErrWindowClosed
		}

		p, err := tx.GetPartnerForUpdate(ctx, partnerID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.ErrNotFound
		}
		if !p.HasCapacity() {
			return apperr.ErrCapacityExceeded
		}

		ok, err := tx.RecordAttemptResponse(ctx, deliveryID, partnerID, domain.ResponseAccepted, "", pending.RequestID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		if _, err := tx.SupersedePending(ctx, deliveryID, partnerID, now); err != nil {
			return err
		}
		ok, err = tx.AdjustPartnerActive(ctx, p.ID, p.Version, 1)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		ok, err = tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:            domain.StatusAccepted,
			AssignedPartnerID: &partnerID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrAlreadyAssigned
		}

		next := *cur
		next.Status = domain.StatusAccepted
		next.AssignedPartnerID = &partnerID
		next.Version = cur.Version + 1
		next.UpdatedAt = now
		out = &next
		assigned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if assigned {
		inc(e.counters.Assigned)
		e.notifier.DeliveryAssigned(ctx, deliveryID, partnerID)
		e.logger.Info("delivery accepted",
			logx.String("event", "delivery_accepted"),
			logx.String("delivery_id", deliveryID.String()),
			logx.Int64("partner_id", partnerID),
		)
	}
	return out, nil
}

// Reject records a partner's refusal. When the last pending notification of
// the round is refused the delivery goes back to MATCHING and the next round
// starts immediately.
func (e *Engine) Reject(ctx context.Context, deliveryID uuid.UUID, partnerID int64, reason string) error {
	var redispatch bool
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		switch cur.Status {
		case domain.StatusCancelled:
			return apperr.ErrDeliveryCancelled
		case domain.StatusDelivered, domain.StatusFailed:
			return apperr.ErrInvalidTransition
		}

		now := e.now()
		ok, err := tx.RecordAttemptResponse(ctx, deliveryID, partnerID, domain.ResponseRejected, reason, uuid.Nil, now)
		if err != nil {
			return err
		}
		if !ok {
			// already answered or never notified, nothing to do
			return nil
		}

		if cur.Status != domain.StatusAssigned {
			return nil
		}
		attempts, err := tx.ListAttempts(ctx, deliveryID)
		if err != nil {
			return err
		}
		if anyOtherPending(attempts, partnerID, cur.MatchingAttempts) {
			return nil
		}

		ok, err = tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:        domain.StatusMatching,
			ClearAssigned: true,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		redispatch = true
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("match rejected",
		logx.String("delivery_id", deliveryID.String()),
		logx.Int64("partner_id", partnerID),
		logx.String("reason", reason),
	)

	if redispatch {
		if _, err := e.Dispatch(ctx, deliveryID); err != nil && !errors.Is(err, apperr.ErrNoPartnersAvailable) {
			return err
		}
	}
	return nil
}

// SweepStaleMatching retries deliveries an empty dispatch round left in
// MATCHING, once the retry backoff since the last round has passed. Each
// retry burns an attempt through Dispatch, so exhausted deliveries still
// end up FAILED. Returns how many deliveries got a new round.
func (e *Engine) SweepStaleMatching(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.cfg.RetryBackoff)
	ids, err := e.repo.ListStaleMatching(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, id := range ids {
		if _, err := e.Dispatch(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrNoPartnersAvailable) || errors.Is(err, apperr.ErrConflict) {
				continue
			}
			e.logger.Error("retry dispatch",
				logx.String("delivery_id", id.String()),
				logx.Any("error", err),
			)
			continue
		}
		retried++
	}
	return retried, nil
}

// SweepExpired times out assigned deliveries whose accept TTL ran out and
// re-dispatches them. Returns how many deliveries were expired.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.cfg.AcceptTTL)
	ids, err := e.repo.ListExpiredAssigned(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		expired, err := e.expireOne(ctx, id)
		if err != nil {
			e.logger.Error("expire assignment",
				logx.String("delivery_id", id.String()),
				logx.Any("error", err),
			)
			continue
		}
		if !expired {
			continue
		}
		swept++
		inc(e.counters.Expired)
		if _, err := e.Dispatch(ctx, id); err != nil && !errors.Is(err, apperr.ErrNoPartnersAvailable) {
			e.logger.Error("re-dispatch after expiry",
				logx.String("delivery_id", id.String()),
				logx.Any("error", err),
			)
		}
	}
	return swept, nil
}

func (e *Engine) expireOne(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	expired := false
	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != domain.StatusAssigned {
			return nil
		}

		now := e.now()
		attempts, err := tx.ListAttempts(ctx, deliveryID)
		if err != nil {
			return err
		}
		for _, a := range attempts {
			if a.Attempt != cur.MatchingAttempts || !a.Pending() {
				continue
			}
			if _, err := tx.RecordAttemptResponse(ctx, deliveryID, a.PartnerID, domain.ResponseTimeout, "accept_ttl_expired", uuid.Nil, now); err != nil {
				return err
			}
		}

		ok, err := tx.UpdateDelivery(ctx, cur.ID, cur.Version, domain.DeliveryChange{
			Status:        domain.StatusMatching,
			ClearAssigned: true,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConflict
		}
		expired = true
		return nil
	})
	return expired, err
}

func findPending(attempts []domain.MatchingAttempt, partnerID int64, round int) *domain.MatchingAttempt {
	for i := range attempts {
		a := &attempts[i]
		if a.PartnerID == partnerID && a.Attempt == round && a.Pending() {
			return a
		}
	}
	return nil
}

func anyOtherPending(attempts []domain.MatchingAttempt, partnerID int64, round int) bool {
	for _, a := range attempts {
		if a.PartnerID != partnerID && a.Attempt == round && a.Pending() {
			return true
		}
	}
	return false
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// Package memrepo is an in-memory stand-in for the Postgres repository,
// used by service tests. It mirrors the version-check and row-filter
// semantics of the SQL layer but runs WithTx callbacks directly, without
// rollback on error.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

// Store holds all state behind one mutex. Fields are exported so tests can
// seed and inspect them directly; the accessor methods take the lock.
type Store struct {
	mu         sync.Mutex
	Deliveries map[uuid.UUID]*domain.Delivery
	Partners   map[int64]*domain.Partner
	Attempts   []*domain.MatchingAttempt
	Bids       map[uuid.UUID]*domain.Bid

	// NowFn substitutes the write timestamp; defaults to time.Now UTC.
	NowFn func() time.Time

	nextAttemptID int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		Deliveries: make(map[uuid.UUID]*domain.Delivery),
		Partners:   make(map[int64]*domain.Partner),
		Bids:       make(map[uuid.UUID]*domain.Bid),
	}
}

func (s *Store) now() time.Time {
	if s.NowFn != nil {
		return s.NowFn()
	}
	return time.Now().UTC()
}

// AddDelivery seeds a delivery. Zero version becomes 1.
func (s *Store) AddDelivery(d domain.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Version == 0 {
		d.Version = 1
	}
	s.Deliveries[d.ID] = &d
}

// AddPartner seeds a partner. Zero version becomes 1.
func (s *Store) AddPartner(p domain.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Version == 0 {
		p.Version = 1
	}
	s.Partners[p.ID] = &p
}

// WithTx runs fn against the store itself. There is no rollback: a failed
// callback leaves earlier writes applied, which tests account for.
func (s *Store) WithTx(_ context.Context, fn func(tx dispatchtx.Repository) error) error {
	return fn(s)
}

// InsertDelivery stores a new delivery row.
func (s *Store) InsertDelivery(_ context.Context, d *domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Version = 1
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	s.Deliveries[d.ID] = &cp
	return nil
}

// GetDelivery returns a copy of the delivery or nil.
func (s *Store) GetDelivery(_ context.Context, id uuid.UUID) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.Deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// GetDeliveryForUpdate behaves like GetDelivery; the store has no row locks.
func (s *Store) GetDeliveryForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	return s.GetDelivery(ctx, id)
}

// UpdateDelivery applies the change when the version matches.
func (s *Store) UpdateDelivery(_ context.Context, id uuid.UUID, version int64, ch domain.DeliveryChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.Deliveries[id]
	if !ok || d.Version != version {
		return false, nil
	}
	d.Status = ch.Status
	if ch.AssignedPartnerID != nil {
		v := *ch.AssignedPartnerID
		d.AssignedPartnerID = &v
	}
	if ch.ClearAssigned {
		d.AssignedPartnerID = nil
	}
	if ch.IncAttempts {
		d.MatchingAttempts++
	}
	if ch.FinalPrice != nil {
		v := *ch.FinalPrice
		d.FinalPrice = &v
	}
	if ch.CancelReason != nil {
		v := *ch.CancelReason
		d.CancelReason = &v
	}
	if ch.BidWindowOpensAt != nil {
		v := *ch.BidWindowOpensAt
		d.BidWindowOpensAt = &v
	}
	if ch.BidWindowClosesAt != nil {
		v := *ch.BidWindowClosesAt
		d.BidWindowClosesAt = &v
	}
	if ch.ClearBidWindow {
		d.BidWindowOpensAt = nil
		d.BidWindowClosesAt = nil
	}
	if ch.MarkWindowReopen {
		d.BidWindowReopened = true
	}
	d.Version++
	d.UpdatedAt = s.now()
	return true, nil
}

// GetPartnerForUpdate returns a copy of the partner or nil.
func (s *Store) GetPartnerForUpdate(_ context.Context, id int64) (*domain.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Partners[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// GetPartners returns copies of the partners with the given ids, id order.
func (s *Store) GetPartners(_ context.Context, ids []int64) ([]domain.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Partner, 0, len(ids))
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if p, ok := s.Partners[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// AdjustPartnerActive moves the active counter, refusing to leave
// [0, max_concurrent] or to write over a stale version.
func (s *Store) AdjustPartnerActive(_ context.Context, id int64, version int64, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Partners[id]
	if !ok || p.Version != version {
		return false, nil
	}
	next := p.ActiveDeliveries + delta
	if next < 0 || next > p.MaxConcurrent {
		return false, nil
	}
	p.ActiveDeliveries = next
	p.Version++
	return true, nil
}

// InsertAttempt appends a notification row.
func (s *Store) InsertAttempt(_ context.Context, a *domain.MatchingAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAttemptID++
	a.ID = s.nextAttemptID
	cp := *a
	s.Attempts = append(s.Attempts, &cp)
	return nil
}

// ListAttempts returns the delivery's notification log, insertion order.
func (s *Store) ListAttempts(_ context.Context, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MatchingAttempt
	for _, a := range s.Attempts {
		if a.DeliveryID == deliveryID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// RecordAttemptResponse answers every pending row of the (delivery, partner)
// pair, like the SQL update it mirrors.
func (s *Store) RecordAttemptResponse(_ context.Context, deliveryID uuid.UUID, partnerID int64, resp domain.ResponseType, reason string, requestID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit := false
	for _, a := range s.Attempts {
		if a.DeliveryID != deliveryID || a.PartnerID != partnerID || !a.Pending() {
			continue
		}
		a.Response = resp
		a.Reason = reason
		if requestID != uuid.Nil {
			a.RequestID = requestID
		}
		t := at
		a.RespondedAt = &t
		hit = true
	}
	return hit, nil
}

// SupersedePending closes other partners' pending rows after a round is won.
func (s *Store) SupersedePending(_ context.Context, deliveryID uuid.UUID, exceptPartnerID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.Attempts {
		if a.DeliveryID != deliveryID || a.PartnerID == exceptPartnerID || !a.Pending() {
			continue
		}
		a.Response = domain.ResponseSuperseded
		t := at
		a.RespondedAt = &t
		n++
	}
	return n, nil
}

// InsertBid stores a bid, enforcing the one-open-bid-per-pair rule.
func (s *Store) InsertBid(_ context.Context, b *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.Bids {
		if other.DeliveryID == b.DeliveryID && other.PartnerID == b.PartnerID && other.Status == domain.BidPending {
			return apperr.ErrDuplicateBid
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	cp := *b
	s.Bids[b.ID] = &cp
	return nil
}

// GetOpenBid returns the partner's pending bid on the delivery, or nil.
func (s *Store) GetOpenBid(_ context.Context, deliveryID uuid.UUID, partnerID int64) (*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.Bids {
		if b.DeliveryID == deliveryID && b.PartnerID == partnerID && b.Status == domain.BidPending {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

// GetBid returns a copy of the bid or nil.
func (s *Store) GetBid(_ context.Context, bidID uuid.UUID) (*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bids[bidID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

// ListBids returns all bids for a delivery ordered by creation time.
func (s *Store) ListBids(_ context.Context, deliveryID uuid.UUID) ([]domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bid
	for _, b := range s.Bids {
		if b.DeliveryID == deliveryID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// CountOpenBidsByPartner counts the partner's pending bids across deliveries.
func (s *Store) CountOpenBidsByPartner(_ context.Context, partnerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.Bids {
		if b.PartnerID == partnerID && b.Status == domain.BidPending {
			n++
		}
	}
	return n, nil
}

// CountBids counts all bids recorded for a delivery.
func (s *Store) CountBids(_ context.Context, deliveryID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.Bids {
		if b.DeliveryID == deliveryID {
			n++
		}
	}
	return n, nil
}

// UpdateBidStatus moves a bid between statuses when the source matches.
func (s *Store) UpdateBidStatus(_ context.Context, bidID uuid.UUID, from, to domain.BidStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bids[bidID]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.Reason = reason
	return true, nil
}

// CloseOtherBids moves every pending bid except the winner to a terminal
// status.
func (s *Store) CloseOtherBids(_ context.Context, deliveryID uuid.UUID, winnerID uuid.UUID, to domain.BidStatus, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.Bids {
		if b.DeliveryID != deliveryID || b.ID == winnerID || b.Status != domain.BidPending {
			continue
		}
		b.Status = to
		b.Reason = reason
		n++
	}
	return n, nil
}

// ListExpiredAssigned returns assigned deliveries untouched since the cutoff.
func (s *Store) ListExpiredAssigned(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, d := range s.Deliveries {
		if d.Status == domain.StatusAssigned && d.UpdatedAt.Before(cutoff) {
			out = append(out, d.ID)
		}
	}
	sortIDs(out)
	return out, nil
}

// ListStaleMatching returns matching deliveries untouched since the cutoff
// that carry no bid window and no pending notification.
func (s *Store) ListStaleMatching(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, d := range s.Deliveries {
		if d.Status != domain.StatusMatching || d.BidWindowClosesAt != nil || !d.UpdatedAt.Before(cutoff) {
			continue
		}
		pending := false
		for _, a := range s.Attempts {
			if a.DeliveryID == d.ID && a.Pending() {
				pending = true
				break
			}
		}
		if !pending {
			out = append(out, d.ID)
		}
	}
	sortIDs(out)
	return out, nil
}

// ListDueBidWindows returns matching deliveries whose window has elapsed.
func (s *Store) ListDueBidWindows(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, d := range s.Deliveries {
		if d.Status == domain.StatusMatching && d.BidWindowClosesAt != nil && !d.BidWindowClosesAt.After(now) {
			out = append(out, d.ID)
		}
	}
	sortIDs(out)
	return out, nil
}

// ListAutoSelectDue returns open windows opened before the cutoff that hold
// at least one valid pending bid.
func (s *Store) ListAutoSelectDue(_ context.Context, openedBefore, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, d := range s.Deliveries {
		if d.Status != domain.StatusMatching ||
			d.BidWindowOpensAt == nil || d.BidWindowOpensAt.After(openedBefore) ||
			d.BidWindowClosesAt == nil || !d.BidWindowClosesAt.After(now) {
			continue
		}
		for _, b := range s.Bids {
			if b.DeliveryID == d.ID && b.Status == domain.BidPending && !b.ExceedsMaxRate {
				out = append(out, d.ID)
				break
			}
		}
	}
	sortIDs(out)
	return out, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

var _ dispatchtx.Repository = (*Store)(nil)
var _ dispatchtx.Runner = (*Store)(nil)

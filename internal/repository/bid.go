package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const bidColumns = `
        id, delivery_id, partner_id, amount, notes, lat, lng,
        distance_to_pickup_km, est_pickup_minutes, est_delivery_minutes,
        status, exceeds_max_rate, reason, request_id, expires_at, created_at`

func scanBid(row rowScanner) (*domain.Bid, error) {
	var b domain.Bid
	var status string
	var reqID *uuid.UUID
	err := row.Scan(
		&b.ID, &b.DeliveryID, &b.PartnerID, &b.Amount, &b.Notes,
		&b.Location.Lat, &b.Location.Lng,
		&b.DistanceToPickupKm, &b.EstPickupMinutes, &b.EstDeliveryMinutes,
		&status, &b.ExceedsMaxRate, &b.Reason, &reqID, &b.ExpiresAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BidStatus(status)
	if reqID != nil {
		b.RequestID = *reqID
	}
	return &b, nil
}

// InsertBid persists a new bid. A second open bid for the same
// (delivery, partner) pair trips the partial unique index and is reported
// as a duplicate.
func (r *TxRepo) InsertBid(ctx context.Context, b *domain.Bid) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO bids (
            id, delivery_id, partner_id, amount, notes, lat, lng,
            distance_to_pickup_km, est_pickup_minutes, est_delivery_minutes,
            status, exceeds_max_rate, request_id, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING created_at
    `,
		b.ID, b.DeliveryID, b.PartnerID, b.Amount, b.Notes,
		b.Location.Lat, b.Location.Lng,
		b.DistanceToPickupKm, b.EstPickupMinutes, b.EstDeliveryMinutes,
		string(b.Status), b.ExceedsMaxRate, b.RequestID, b.ExpiresAt,
	).Scan(&b.CreatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrDuplicateBid
		}
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// GetOpenBid returns the partner's pending bid on a delivery, if any.
func (r *TxRepo) GetOpenBid(ctx context.Context, deliveryID uuid.UUID, partnerID int64) (*domain.Bid, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT`+bidColumns+`
        FROM bids
        WHERE delivery_id = $1 AND partner_id = $2 AND status = $3
    `, deliveryID, partnerID, string(domain.BidPending))
	b, err := scanBid(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open bid: %w", err)
	}
	return b, nil
}

// GetBid returns a bid by its ID.
func (r *TxRepo) GetBid(ctx context.Context, bidID uuid.UUID) (*domain.Bid, error) {
	row := r.tx.QueryRow(ctx, `SELECT`+bidColumns+` FROM bids WHERE id = $1`, bidID)
	b, err := scanBid(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return b, nil
}

// ListBids returns all bids for a delivery in submission order.
func (r *TxRepo) ListBids(ctx context.Context, deliveryID uuid.UUID) ([]domain.Bid, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT`+bidColumns+`
        FROM bids
        WHERE delivery_id = $1
        ORDER BY created_at, id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list bids for %s: %w", deliveryID, err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CountOpenBidsByPartner counts the partner's pending bids across deliveries.
func (r *TxRepo) CountOpenBidsByPartner(ctx context.Context, partnerID int64) (int, error) {
	return r.countBids(ctx, `SELECT COUNT(*) FROM bids WHERE partner_id = $1 AND status = $2`,
		partnerID, string(domain.BidPending))
}

// CountBids counts all bids recorded for a delivery.
func (r *TxRepo) CountBids(ctx context.Context, deliveryID uuid.UUID) (int, error) {
	return r.countBids(ctx, `SELECT COUNT(*) FROM bids WHERE delivery_id = $1`, deliveryID)
}

func (r *TxRepo) countBids(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := r.tx.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return n, nil
}

// UpdateBidStatus moves a bid from one status to another. Returns false when
// the bid is not in the expected source status.
func (r *TxRepo) UpdateBidStatus(ctx context.Context, bidID uuid.UUID, from, to domain.BidStatus, reason string) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE bids
        SET status = $3, reason = $4, updated_at = now()
        WHERE id = $1 AND status = $2
    `, bidID, string(from), string(to), reason)
	if err != nil {
		return false, fmt.Errorf("update bid %s status: %w", bidID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// CloseOtherBids moves every pending bid except the winner to a terminal
// status and returns how many rows changed.
func (r *TxRepo) CloseOtherBids(ctx context.Context, deliveryID uuid.UUID, winnerID uuid.UUID, to domain.BidStatus, reason string) (int64, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE bids
        SET status = $4, reason = $5, updated_at = now()
        WHERE delivery_id = $1 AND id <> $2 AND status = $3
    `, deliveryID, winnerID, string(domain.BidPending), string(to), reason)
	if err != nil {
		return 0, fmt.Errorf("close other bids for %s: %w", deliveryID, err)
	}
	return ct.RowsAffected(), nil
}

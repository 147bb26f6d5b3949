package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

// DeliveryRepo represents the delivery/dispatch repository.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// roll back on panic before re-raising
	defer func() {
		if p := recover(); p != nil {
			err = tx.Rollback(ctx)
			if err != nil {
				panic(err)
			}
			panic(p)
		}
	}()

	wrapped := &TxRepo{tx: tx}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const deliveryColumns = `
        id, requester_id, requester_type,
        pickup_lat, pickup_lng, pickup_address, pickup_contact, pickup_pincode,
        drop_lat, drop_lng, drop_address, drop_contact, drop_pincode,
        weight_kg, package_type, declared_value, hazardous, special_handling,
        priority, pool_route, status, assigned_partner_id,
        estimated_price, final_price, matching_attempts, distance_km,
        bid_window_opens_at, bid_window_closes_at, bid_window_reopened,
        cancel_reason, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var d domain.Delivery
	var status, requesterType, priority string
	err := row.Scan(
		&d.ID, &d.RequesterID, &requesterType,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.Pickup.Address, &d.Pickup.Contact, &d.Pickup.Pincode,
		&d.Drop.Lat, &d.Drop.Lng, &d.Drop.Address, &d.Drop.Contact, &d.Drop.Pincode,
		&d.Package.WeightKg, &d.Package.Type, &d.Package.DeclaredValue,
		&d.Package.Hazardous, &d.Package.SpecialHandling,
		&priority, &d.PoolRoute, &status, &d.AssignedPartnerID,
		&d.EstimatedPrice, &d.FinalPrice, &d.MatchingAttempts, &d.DistanceKm,
		&d.BidWindowOpensAt, &d.BidWindowClosesAt, &d.BidWindowReopened,
		&d.CancelReason, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = domain.DeliveryStatus(status)
	d.RequesterType = domain.RequesterType(requesterType)
	d.Priority = domain.Priority(priority)
	return &d, nil
}

// GetDelivery - returns a delivery by its ID.
func (r *DeliveryRepo) GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	row := r.db.QueryRow(ctx, `SELECT`+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return d, nil
}

// GetPartners returns partner snapshots for the given ids.
func (r *DeliveryRepo) GetPartners(ctx context.Context, ids []int64) ([]domain.Partner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get partners: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Partner, 0, len(ids))
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListAttempts returns the notification log for a delivery, oldest first.
func (r *DeliveryRepo) ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error) {
	return listAttempts(ctx, r.db, deliveryID)
}

// ListExpiredAssigned returns ids of deliveries stuck in ASSIGNED since
// before the cutoff.
func (r *DeliveryRepo) ListExpiredAssigned(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM deliveries
        WHERE status = $1 AND updated_at < $2
        ORDER BY updated_at
    `, string(domain.StatusAssigned), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired assigned: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListStaleMatching returns ids of deliveries parked in MATCHING since
// before the cutoff with no bid window and no unanswered notification,
// i.e. deliveries a dispatch round left behind for lack of partners.
func (r *DeliveryRepo) ListStaleMatching(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT d.id FROM deliveries d
        WHERE d.status = $1
          AND d.bid_window_closes_at IS NULL
          AND d.updated_at < $2
          AND NOT EXISTS (
              SELECT 1 FROM matching_attempts ma
              WHERE ma.delivery_id = d.id AND ma.response = ''
          )
        ORDER BY d.updated_at
    `, string(domain.StatusMatching), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale matching: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListDueBidWindows returns ids of deliveries whose bid window has passed.
func (r *DeliveryRepo) ListDueBidWindows(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM deliveries
        WHERE status = $1 AND bid_window_closes_at IS NOT NULL AND bid_window_closes_at <= $2
        ORDER BY bid_window_closes_at
    `, string(domain.StatusMatching), now)
	if err != nil {
		return nil, fmt.Errorf("list due bid windows: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListAutoSelectDue returns ids of open windows that have at least one valid
// pending bid and were opened before the cutoff.
func (r *DeliveryRepo) ListAutoSelectDue(ctx context.Context, openedBefore, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT d.id FROM deliveries d
        WHERE d.status = $1
          AND d.bid_window_opens_at IS NOT NULL AND d.bid_window_opens_at <= $2
          AND d.bid_window_closes_at IS NOT NULL AND d.bid_window_closes_at > $3
          AND EXISTS (
              SELECT 1 FROM bids b
              WHERE b.delivery_id = d.id AND b.status = $4 AND NOT b.exceeds_max_rate
          )
        ORDER BY d.bid_window_opens_at
    `, string(domain.StatusMatching), openedBefore, now, string(domain.BidPending))
	if err != nil {
		return nil, fmt.Errorf("list auto-select due: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TxRepo represents the transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// InsertDelivery - insert a new delivery.
func (r *TxRepo) InsertDelivery(ctx context.Context, d *domain.Delivery) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO deliveries (
            id, requester_id, requester_type,
            pickup_lat, pickup_lng, pickup_address, pickup_contact, pickup_pincode,
            drop_lat, drop_lng, drop_address, drop_contact, drop_pincode,
            weight_kg, package_type, declared_value, hazardous, special_handling,
            priority, pool_route, status, estimated_price, distance_km
        ) VALUES (
            $1, $2, $3,
            $4, $5, $6, $7, $8,
            $9, $10, $11, $12, $13,
            $14, $15, $16, $17, $18,
            $19, $20, $21, $22, $23
        )
        RETURNING version, created_at, updated_at
    `,
		d.ID, d.RequesterID, string(d.RequesterType),
		d.Pickup.Lat, d.Pickup.Lng, d.Pickup.Address, d.Pickup.Contact, d.Pickup.Pincode,
		d.Drop.Lat, d.Drop.Lng, d.Drop.Address, d.Drop.Contact, d.Drop.Pincode,
		d.Package.WeightKg, d.Package.Type, d.Package.DeclaredValue,
		d.Package.Hazardous, d.Package.SpecialHandling,
		string(d.Priority), d.PoolRoute, string(d.Status), d.EstimatedPrice, d.DistanceKm,
	).Scan(&d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetDeliveryForUpdate - get a delivery by ID with a row lock.
func (r *TxRepo) GetDeliveryForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	row := r.tx.QueryRow(ctx, `SELECT`+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery for update %s: %w", id, err)
	}
	return d, nil
}

// UpdateDelivery applies a status transition guarded by the version token.
// Returns false when the row moved on since it was read.
func (r *TxRepo) UpdateDelivery(ctx context.Context, id uuid.UUID, version int64, ch domain.DeliveryChange) (bool, error) {
	sets := []string{"status = $3", "version = version + 1", "updated_at = now()"}
	args := []any{id, version, string(ch.Status)}

	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if ch.AssignedPartnerID != nil {
		add("assigned_partner_id = $%d", *ch.AssignedPartnerID)
	}
	if ch.ClearAssigned {
		sets = append(sets, "assigned_partner_id = NULL")
	}
	if ch.IncAttempts {
		sets = append(sets, "matching_attempts = matching_attempts + 1")
	}
	if ch.FinalPrice != nil {
		add("final_price = $%d", *ch.FinalPrice)
	}
	if ch.CancelReason != nil {
		add("cancel_reason = $%d", *ch.CancelReason)
	}
	if ch.BidWindowOpensAt != nil {
		add("bid_window_opens_at = $%d", *ch.BidWindowOpensAt)
	}
	if ch.BidWindowClosesAt != nil {
		add("bid_window_closes_at = $%d", *ch.BidWindowClosesAt)
	}
	if ch.ClearBidWindow {
		sets = append(sets, "bid_window_opens_at = NULL", "bid_window_closes_at = NULL")
	}
	if ch.MarkWindowReopen {
		sets = append(sets, "bid_window_reopened = TRUE")
	}

	q := fmt.Sprintf(`UPDATE deliveries SET %s WHERE id = $1 AND version = $2`, strings.Join(sets, ", "))
	ct, err := r.tx.Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update delivery %s: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// GetPartnerForUpdate - get a partner by ID with a row lock.
func (r *TxRepo) GetPartnerForUpdate(ctx context.Context, id int64) (*domain.Partner, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPartner(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get partner for update %d: %w", id, err)
	}
	return p, nil
}

// AdjustPartnerActive moves the partner's active delivery counter by delta.
// The write is version-checked and refuses to leave [0, max_concurrent].
func (r *TxRepo) AdjustPartnerActive(ctx context.Context, id int64, version int64, delta int) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE partners
        SET active_deliveries = active_deliveries + $3,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $2
          AND active_deliveries + $3 >= 0
          AND active_deliveries + $3 <= max_concurrent
    `, id, version, delta)
	if err != nil {
		return false, fmt.Errorf("adjust partner %d active: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// InsertAttempt appends a notification row to the matching log.
func (r *TxRepo) InsertAttempt(ctx context.Context, a *domain.MatchingAttempt) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO matching_attempts (delivery_id, partner_id, attempt, notified_at, request_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, a.DeliveryID, a.PartnerID, a.Attempt, a.NotifiedAt, a.RequestID).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the notification log for a delivery, oldest first.
func (r *TxRepo) ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error) {
	return listAttempts(ctx, r.tx, deliveryID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listAttempts(ctx context.Context, q querier, deliveryID uuid.UUID) ([]domain.MatchingAttempt, error) {
	rows, err := q.Query(ctx, `
        SELECT id, delivery_id, partner_id, attempt, notified_at,
               response, responded_at, reason, request_id
        FROM matching_attempts
        WHERE delivery_id = $1
        ORDER BY id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for %s: %w", deliveryID, err)
	}
	defer rows.Close()

	var out []domain.MatchingAttempt
	for rows.Next() {
		var a domain.MatchingAttempt
		var resp string
		var reqID *uuid.UUID
		if err := rows.Scan(&a.ID, &a.DeliveryID, &a.PartnerID, &a.Attempt, &a.NotifiedAt,
			&resp, &a.RespondedAt, &a.Reason, &reqID); err != nil {
			return nil, err
		}
		a.Response = domain.ResponseType(resp)
		if reqID != nil {
			a.RequestID = *reqID
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordAttemptResponse marks the partner's pending notification answered.
// Returns false when no pending row exists, i.e. the response was already
// recorded or the partner was never notified. A nil requestID leaves the
// notification's idempotency key in place.
func (r *TxRepo) RecordAttemptResponse(ctx context.Context, deliveryID uuid.UUID, partnerID int64, resp domain.ResponseType, reason string, requestID uuid.UUID, at time.Time) (bool, error) {
	var reqID *uuid.UUID
	if requestID != uuid.Nil {
		reqID = &requestID
	}
	ct, err := r.tx.Exec(ctx, `
        UPDATE matching_attempts
        SET response = $3, reason = $4, request_id = COALESCE($5, request_id), responded_at = $6
        WHERE delivery_id = $1 AND partner_id = $2 AND response = ''
    `, deliveryID, partnerID, string(resp), reason, reqID, at)
	if err != nil {
		return false, fmt.Errorf("record attempt response: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SupersedePending closes the remaining pending notifications after a
// broadcast round is won.
func (r *TxRepo) SupersedePending(ctx context.Context, deliveryID uuid.UUID, exceptPartnerID int64, at time.Time) (int64, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE matching_attempts
        SET response = $3, responded_at = $4
        WHERE delivery_id = $1 AND partner_id <> $2 AND response = ''
    `, deliveryID, exceptPartnerID, string(domain.ResponseSuperseded), at)
	if err != nil {
		return 0, fmt.Errorf("supersede pending: %w", err)
	}
	return ct.RowsAffected(), nil
}

var _ dispatchtx.Repository = (*TxRepo)(nil)

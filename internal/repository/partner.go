package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

// PartnerRepo represents the partner repository.
type PartnerRepo struct{ db *pgxpool.Pool }

// NewPartnerRepo creates a new PartnerRepo.
func NewPartnerRepo(db *pgxpool.Pool) *PartnerRepo { return &PartnerRepo{db: db} }

const partnerColumns = `
        id, name, phone, online, rating, active_deliveries, max_concurrent,
        last_lat, last_lng, last_seen_at, service_area, version`

func scanPartner(row rowScanner) (*domain.Partner, error) {
	var p domain.Partner
	var lastLat, lastLng *float64
	var areaJSON []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Phone, &p.Online, &p.Rating,
		&p.ActiveDeliveries, &p.MaxConcurrent,
		&lastLat, &lastLng, &p.LastSeenAt, &areaJSON, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	if lastLat != nil && lastLng != nil {
		p.LastLocation = &domain.GeoPoint{Lat: *lastLat, Lng: *lastLng}
	}
	if len(areaJSON) > 0 {
		if err := json.Unmarshal(areaJSON, &p.ServiceArea); err != nil {
			return nil, fmt.Errorf("decode service area for partner %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

// Get - returns a partner by its ID.
func (r *PartnerRepo) Get(ctx context.Context, id int64) (*domain.Partner, error) {
	row := r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id)
	p, err := scanPartner(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get partner %d: %w", id, err)
	}
	return p, nil
}

// List returns partners ordered by id. If limit/offset are nil, returns the full list.
func (r *PartnerRepo) List(ctx context.Context, limit, offset *int) ([]domain.Partner, error) {
	q := `SELECT ` + partnerColumns + ` FROM partners ORDER BY id`
	args := make([]any, 0, 2)
	if limit != nil {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, *limit)
	}
	if offset != nil {
		q += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, *offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	capacity := 0
	if limit != nil && *limit > 0 {
		capacity = *limit
	}
	out := make([]domain.Partner, 0, capacity)
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create - creates a new partner.
func (r *PartnerRepo) Create(ctx context.Context, p *domain.Partner) (int64, error) {
	areaJSON, err := json.Marshal(p.ServiceArea)
	if err != nil {
		return 0, fmt.Errorf("encode service area: %w", err)
	}

	var id int64
	err = r.db.QueryRow(ctx, `
        INSERT INTO partners (name, phone, online, rating, max_concurrent, service_area)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, p.Name, p.Phone, p.Online, p.Rating, p.MaxConcurrent, areaJSON).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create partner: %w", err)
	}
	return id, nil
}

// UpdatePartial applies a partial update to a partner and returns true if a row was affected.
func (r *PartnerRepo) UpdatePartial(ctx context.Context, u domain.PartialPartnerUpdate) (bool, error) {
	var areaJSON []byte
	if u.ServiceArea != nil {
		var err error
		areaJSON, err = json.Marshal(*u.ServiceArea)
		if err != nil {
			return false, fmt.Errorf("encode service area: %w", err)
		}
	}

	ct, err := r.db.Exec(ctx, `
        UPDATE partners
        SET
            name           = COALESCE($2, name),
            phone          = COALESCE($3, phone),
            online         = COALESCE($4, online),
            max_concurrent = COALESCE($5, max_concurrent),
            service_area   = COALESCE($6, service_area),
            version        = version + 1,
            updated_at     = now()
        WHERE id = $1
    `, u.ID, u.Name, u.Phone, u.Online, u.MaxConcurrent, areaJSON)

	if err != nil {
		if IsDuplicate(err) {
			return false, apperr.ErrConflict
		}
		return false, fmt.Errorf("update partner %d: %w", u.ID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// Heartbeat records a partner's location update.
func (r *PartnerRepo) Heartbeat(ctx context.Context, id int64, p domain.GeoPoint, at time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE partners
        SET last_lat = $2, last_lng = $3, last_seen_at = $4, updated_at = now()
        WHERE id = $1
    `, id, p.Lat, p.Lng, at)
	if err != nil {
		return false, fmt.Errorf("partner %d heartbeat: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

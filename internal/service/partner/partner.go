// Package partner coordinates partner profile management and keeps the
// spatial index in step with availability changes.
package partner

import (
	"context"
	"strings"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// Service coordinates partner business logic and orchestrates repository calls.
type Service struct {
	repo             partnerRepository
	index            locationIndex
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates and configures a partner Service.
func NewService(r partnerRepository, index locationIndex, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             r,
		index:            index,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// validateCreate validates a partner for creation.
func validateCreate(p *domain.Partner) error {
	if p == nil {
		return apperr.ErrInvalid
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperr.ErrInvalid
	}
	if !domain.ValidatePhone(p.Phone) {
		return apperr.ErrInvalid
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 1
	}
	if p.Rating < 0 || p.Rating > 5 {
		return apperr.ErrInvalid
	}
	return validateArea(p.ServiceArea)
}

func validateUpdate(u *domain.PartialPartnerUpdate) error {
	if u.ID <= 0 {
		return apperr.ErrInvalid
	}
	if u.Name == nil && u.Phone == nil && u.Online == nil && u.MaxConcurrent == nil && u.ServiceArea == nil {
		return apperr.ErrInvalid
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return apperr.ErrInvalid
	}
	if u.Phone != nil && !domain.ValidatePhone(*u.Phone) {
		return apperr.ErrInvalid
	}
	if u.MaxConcurrent != nil && *u.MaxConcurrent <= 0 {
		return apperr.ErrInvalid
	}
	if u.ServiceArea != nil {
		return validateArea(*u.ServiceArea)
	}
	return nil
}

func validateArea(a domain.ServiceArea) error {
	switch a.Kind {
	case domain.AreaCircle:
		if a.RadiusKm <= 0 {
			return apperr.ErrInvalid
		}
	case domain.AreaPincodes:
		if len(a.Pincodes) == 0 {
			return apperr.ErrInvalid
		}
	case domain.AreaPolygon:
		if len(a.Polygon) < 3 {
			return apperr.ErrInvalid
		}
	default:
		return apperr.ErrInvalid
	}
	return nil
}

// Get retrieves a partner by its ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Partner, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// List returns partners with optional pagination
func (s *Service) List(ctx context.Context, limit, offset *int) ([]domain.Partner, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.List(ctx, limit, offset)
}

// Create persists a new partner and returns its generated ID.
func (s *Service) Create(ctx context.Context, p *domain.Partner) (int64, error) {
	if err := validateCreate(p); err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Create(ctx, p)
}

// UpdatePartial applies a partial update to a partner. Toggling a partner
// offline removes it from the spatial index so it stops receiving dispatch
// notifications right away.
func (s *Service) UpdatePartial(ctx context.Context, u domain.PartialPartnerUpdate) (bool, error) {
	if err := validateUpdate(&u); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.repo.UpdatePartial(ctx, u)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperr.ErrNotFound
	}

	if u.Online != nil {
		if err := s.syncIndex(ctx, u.ID, *u.Online); err != nil {
			s.logger.Error("sync geo index",
				logx.Int64("partner_id", u.ID),
				logx.Any("error", err),
			)
		}
	}
	return true, nil
}

func (s *Service) syncIndex(ctx context.Context, id int64, online bool) error {
	if !online {
		return s.index.Remove(ctx, id)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || p.LastLocation == nil {
		return nil
	}
	return s.index.Upsert(ctx, id, *p.LastLocation)
}

// Heartbeat records the partner's current location. Online partners become
// discoverable at the new position immediately.
func (s *Service) Heartbeat(ctx context.Context, id int64, loc domain.GeoPoint) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return apperr.ErrInvalid
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.ErrNotFound
	}

	ok, err := s.repo.Heartbeat(ctx, id, loc, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}

	if p.Online {
		if err := s.index.Upsert(ctx, id, loc); err != nil {
			s.logger.Error("index heartbeat",
				logx.Int64("partner_id", id),
				logx.Any("error", err),
			)
		}
	}
	return nil
}

package partner

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
)

type partnerRepository interface {
	Get(ctx context.Context, id int64) (*domain.Partner, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Partner, error)
	Create(ctx context.Context, p *domain.Partner) (int64, error)
	UpdatePartial(ctx context.Context, u domain.PartialPartnerUpdate) (bool, error)
	Heartbeat(ctx context.Context, id int64, p domain.GeoPoint, at time.Time) (bool, error)
}

// locationIndex is the write slice of the spatial index.
type locationIndex interface {
	Upsert(ctx context.Context, partnerID int64, p domain.GeoPoint) error
	Remove(ctx context.Context, partnerID int64) error
}

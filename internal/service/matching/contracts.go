package matching

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/ports/dispatchtx"
)

// readRepository is the non-transactional read surface the engine needs.
type readRepository interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	GetPartners(ctx context.Context, ids []int64) ([]domain.Partner, error)
	ListExpiredAssigned(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	ListStaleMatching(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

// geoIndex is the radius-query slice of geo.Index.
type geoIndex interface {
	Near(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]geo.Candidate, error)
}

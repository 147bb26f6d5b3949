package events

import (
	"context"

	"github.com/google/uuid"
)

// DispatchPort abstracts the subset of delivery service operations
// needed by the Processor when handling lifecycle events
type DispatchPort interface {
	StartMatching(ctx context.Context, deliveryID uuid.UUID) error
	Cancel(ctx context.Context, deliveryID uuid.UUID, reason string) error
}

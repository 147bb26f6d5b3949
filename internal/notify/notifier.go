// Package notify emits dispatch events for the external notification
// pipeline (push/SMS/webhook transport lives elsewhere). Emission is
// fire-and-forget: a failed publish is logged and never fails the business
// operation that produced it.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier is the outbound event surface used by the dispatch engines.
type Notifier interface {
	PartnerNotified(ctx context.Context, deliveryID uuid.UUID, partnerID int64, attempt int)
	DeliveryAssigned(ctx context.Context, deliveryID uuid.UUID, partnerID int64)
	DeliveryFailed(ctx context.Context, deliveryID uuid.UUID, reason string)
	BidWon(ctx context.Context, deliveryID uuid.UUID, partnerID int64, amount decimal.Decimal)
	BidLost(ctx context.Context, deliveryID uuid.UUID, partnerID int64)
}

// Nop returns a Notifier that drops every event.
func Nop() Notifier { return nopNotifier{} }

type nopNotifier struct{}

func (nopNotifier) PartnerNotified(context.Context, uuid.UUID, int64, int)    {}
func (nopNotifier) DeliveryAssigned(context.Context, uuid.UUID, int64)        {}
func (nopNotifier) DeliveryFailed(context.Context, uuid.UUID, string)         {}
func (nopNotifier) BidWon(context.Context, uuid.UUID, int64, decimal.Decimal) {}
func (nopNotifier) BidLost(context.Context, uuid.UUID, int64)                 {}

var _ Notifier = nopNotifier{}

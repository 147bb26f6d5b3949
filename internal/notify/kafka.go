package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"service-dispatch/internal/logx"
)

// Writer is the outbound message sink, normally a Kafka sync producer.
type Writer interface {
	Write(key string, msg []byte) error
}

// Emitter publishes notification events as JSON messages keyed by delivery id.
type Emitter struct {
	w   Writer
	log logx.Logger
	now func() time.Time
}

// NewEmitter creates a notification emitter. A nil writer yields a no-op
// emitter so callers never have to branch on configuration.
func NewEmitter(w Writer, log logx.Logger) *Emitter {
	if log == nil {
		log = logx.Nop()
	}
	return &Emitter{w: w, log: log, now: time.Now}
}

type message struct {
	Type       string    `json:"type"`
	DeliveryID string    `json:"delivery_id"`
	PartnerID  int64     `json:"partner_id,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e *Emitter) PartnerNotified(ctx context.Context, deliveryID uuid.UUID, partnerID int64, attempt int) {
	e.emit(ctx, message{Type: "partner_notified", DeliveryID: deliveryID.String(), PartnerID: partnerID, Attempt: attempt})
}

func (e *Emitter) DeliveryAssigned(ctx context.Context, deliveryID uuid.UUID, partnerID int64) {
	e.emit(ctx, message{Type: "delivery_assigned", DeliveryID: deliveryID.String(), PartnerID: partnerID})
}

func (e *Emitter) DeliveryFailed(ctx context.Context, deliveryID uuid.UUID, reason string) {
	e.emit(ctx, message{Type: "delivery_failed", DeliveryID: deliveryID.String(), Reason: reason})
}

func (e *Emitter) BidWon(ctx context.Context, deliveryID uuid.UUID, partnerID int64, amount decimal.Decimal) {
	e.emit(ctx, message{Type: "bid_won", DeliveryID: deliveryID.String(), PartnerID: partnerID, Amount: amount.StringFixed(2)})
}

func (e *Emitter) BidLost(ctx context.Context, deliveryID uuid.UUID, partnerID int64) {
	e.emit(ctx, message{Type: "bid_lost", DeliveryID: deliveryID.String(), PartnerID: partnerID})
}

func (e *Emitter) emit(_ context.Context, m message) {
	if e == nil || e.w == nil {
		return
	}
	m.CreatedAt = e.now()

	payload, err := json.Marshal(m)
	if err != nil {
		e.log.Error("notify: marshal", logx.String("type", m.Type), logx.Any("error", err))
		return
	}
	if err := e.w.Write(m.DeliveryID, payload); err != nil {
		e.log.Error("notify: publish",
			logx.String("type", m.Type),
			logx.String("delivery_id", m.DeliveryID),
			logx.Any("error", err),
		)
	}
}

var _ Notifier = (*Emitter)(nil)

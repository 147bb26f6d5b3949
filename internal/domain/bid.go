package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a partner's competitive offer for a delivery under open bidding.
// At most one non-terminal bid may exist per (delivery, partner) pair; the
// store enforces that with a partial unique index.
type Bid struct {
	ID                 uuid.UUID
	DeliveryID         uuid.UUID
	PartnerID          int64
	Amount             decimal.Decimal
	Notes              string
	Location           GeoPoint
	DistanceToPickupKm float64
	EstPickupMinutes   int
	EstDeliveryMinutes int
	Status             BidStatus
	ExceedsMaxRate     bool
	Reason             string
	RequestID          uuid.UUID
	ExpiresAt          time.Time
	CreatedAt          time.Time
}

// BiddingConfig is the tenant-wide auction policy. Read-only to the engine.
type BiddingConfig struct {
	WindowMinutes           int
	MaxBidsPerDelivery      int
	MaxActiveBidsPerPartner int
	MinBidPercent           int64
	MaxBidPercent           int64
	AutoSelectLowest        bool
	AutoSelectAfterMinutes  int
	RetryWindowOnNoBids     bool
}

// Window returns the bid window length.
func (c BiddingConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// Bounds returns the allowed [min, max] bid range for an estimated price.
func (c BiddingConfig) Bounds(estimate decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	min := estimate.Mul(decimal.NewFromInt(c.MinBidPercent)).Div(hundred)
	max := estimate.Mul(decimal.NewFromInt(c.MaxBidPercent)).Div(hundred)
	return min, max
}

// InRange reports whether amount falls inside the allowed bid range.
func (c BiddingConfig) InRange(amount, estimate decimal.Decimal) bool {
	min, max := c.Bounds(estimate)
	return amount.Cmp(min) >= 0 && amount.Cmp(max) <= 0
}

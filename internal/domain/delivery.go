package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Location is a pickup or drop endpoint of a delivery.
type Location struct {
	GeoPoint
	Address string
	Contact string
	Pincode string
}

// Package describes the shipment contents.
type Package struct {
	WeightKg        float64
	Type            string
	DeclaredValue   decimal.Decimal
	Hazardous       bool
	SpecialHandling bool
}

// Delivery - a shipment request moving through the matching lifecycle.
//
// AssignedPartnerID is non-nil exactly while the delivery sits in ASSIGNED or
// any later in-flight/delivered state. Version is the optimistic-concurrency
// token: every mutation compares it at write time and bumps it on success.
type Delivery struct {
	ID                uuid.UUID
	RequesterID       int64
	RequesterType     RequesterType
	Pickup            Location
	Drop              Location
	Package           Package
	Priority          Priority
	PoolRoute         bool
	Status            DeliveryStatus
	AssignedPartnerID *int64
	EstimatedPrice    decimal.Decimal
	FinalPrice        *decimal.Decimal
	MatchingAttempts  int
	DistanceKm        float64
	BidWindowOpensAt  *time.Time
	BidWindowClosesAt *time.Time
	BidWindowReopened bool
	CancelReason      *string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BidWindowOpen reports whether bids are currently accepted for the delivery.
func (d *Delivery) BidWindowOpen(now time.Time) bool {
	return d.Status == StatusMatching &&
		d.BidWindowClosesAt != nil &&
		now.Before(*d.BidWindowClosesAt)
}

// DeliveryChange carries the fields a status transition writes alongside the
// new status. Nil means "do not change"; the Clear flags null a column out.
type DeliveryChange struct {
	Status            DeliveryStatus
	AssignedPartnerID *int64
	ClearAssigned     bool
	IncAttempts       bool
	FinalPrice        *decimal.Decimal
	CancelReason      *string
	BidWindowOpensAt  *time.Time
	BidWindowClosesAt *time.Time
	ClearBidWindow    bool
	MarkWindowReopen  bool
}

// MatchResult is the outcome of one dispatch round.
type MatchResult struct {
	DeliveryID uuid.UUID
	Attempt    int
	Notified   []int64
	AssignedTo int64
}

// MatchingAttempt is one row of the append-only notification log. A row is
// written per notified partner and mutated exactly once, when the response
// is recorded.
type MatchingAttempt struct {
	ID          int64
	DeliveryID  uuid.UUID
	PartnerID   int64
	Attempt     int
	NotifiedAt  time.Time
	Response    ResponseType
	RespondedAt *time.Time
	Reason      string
	RequestID   uuid.UUID
}

// Pending reports whether the notification is still awaiting a response.
func (a MatchingAttempt) Pending() bool {
	return a.Response == ResponseNone
}

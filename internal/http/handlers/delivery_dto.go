package handlers

import (
	"time"
)

type locationDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Contact string  `json:"contact,omitempty"`
	Pincode string  `json:"pincode,omitempty"`
}

type packageDTO struct {
	WeightKg        float64 `json:"weight_kg"`
	Type            string  `json:"type,omitempty"`
	DeclaredValue   string  `json:"declared_value,omitempty"`
	Hazardous       bool    `json:"hazardous,omitempty"`
	SpecialHandling bool    `json:"special_handling,omitempty"`
}

type createDeliveryRequest struct {
	RequesterID   int64       `json:"requester_id"`
	RequesterType string      `json:"requester_type"`
	Pickup        locationDTO `json:"pickup"`
	Drop          locationDTO `json:"drop"`
	Package       packageDTO  `json:"package"`
	Priority      string      `json:"priority,omitempty"`
	PoolRoute     bool        `json:"pool_route,omitempty"`
	OpenBidding   bool        `json:"open_bidding,omitempty"`
}

type deliveryDTO struct {
	ID                string      `json:"id"`
	RequesterID       int64       `json:"requester_id"`
	RequesterType     string      `json:"requester_type"`
	Pickup            locationDTO `json:"pickup"`
	Drop              locationDTO `json:"drop"`
	Package           packageDTO  `json:"package"`
	Priority          string      `json:"priority"`
	Status            string      `json:"status"`
	AssignedPartnerID *int64      `json:"assigned_partner_id,omitempty"`
	EstimatedPrice    string      `json:"estimated_price"`
	FinalPrice        *string     `json:"final_price,omitempty"`
	MatchingAttempts  int         `json:"matching_attempts"`
	DistanceKm        float64     `json:"distance_km"`
	BidWindowOpensAt  *time.Time  `json:"bid_window_opens_at,omitempty"`
	BidWindowClosesAt *time.Time  `json:"bid_window_closes_at,omitempty"`
	CancelReason      *string     `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type cancelDeliveryRequest struct {
	Reason string `json:"reason"`
}

type progressRequest struct {
	PartnerID int64  `json:"partner_id"`
	Status    string `json:"status"`
}

type attemptDTO struct {
	PartnerID   int64      `json:"partner_id"`
	Attempt     int        `json:"attempt"`
	NotifiedAt  time.Time  `json:"notified_at"`
	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

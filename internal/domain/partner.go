package domain

import (
	"regexp"
	"time"
)

// Partner represents a delivery partner and the mutable availability state
// the dispatcher reads and writes. Version is the optimistic token guarding
// concurrent capacity updates.
type Partner struct {
	ID               int64
	Name             string
	Phone            string
	Online           bool
	Rating           float64
	ActiveDeliveries int
	MaxConcurrent    int
	LastLocation     *GeoPoint
	LastSeenAt       *time.Time
	ServiceArea      ServiceArea
	Version          int64
}

// HasCapacity reports whether the partner can take one more delivery.
func (p *Partner) HasCapacity() bool {
	return p.ActiveDeliveries < p.MaxConcurrent
}

// PartialPartnerUpdate carries optional fields to update a partner.
// A nil field means “do not change” that attribute.
type PartialPartnerUpdate struct {
	ID            int64
	Name          *string
	Phone         *string
	Online        *bool
	MaxConcurrent *int
	ServiceArea   *ServiceArea
}

// rePhone is a regex to validate phone numbers
var rePhone = regexp.MustCompile(`^\+[0-9]{10,13}$`)

// ValidatePhone validates the phone number format
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}

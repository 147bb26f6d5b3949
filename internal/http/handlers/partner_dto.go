package handlers

import (
	"time"

	"service-dispatch/internal/domain"
)

type geoPointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type partnerDTO struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	Phone            string             `json:"phone"`
	Online           bool               `json:"online"`
	Rating           float64            `json:"rating"`
	ActiveDeliveries int                `json:"active_deliveries"`
	MaxConcurrent    int                `json:"max_concurrent"`
	LastLocation     *geoPointDTO       `json:"last_location,omitempty"`
	LastSeenAt       *time.Time         `json:"last_seen_at,omitempty"`
	ServiceArea      domain.ServiceArea `json:"service_area"`
}

type createPartnerRequest struct {
	Name          string             `json:"name"`
	Phone         string             `json:"phone"`
	Online        bool               `json:"online"`
	Rating        float64            `json:"rating"`
	MaxConcurrent int                `json:"max_concurrent"`
	ServiceArea   domain.ServiceArea `json:"service_area"`
}

type updatePartnerRequest struct {
	ID            int64               `json:"id"`
	Name          *string             `json:"name,omitempty"`
	Phone         *string             `json:"phone,omitempty"`
	Online        *bool               `json:"online,omitempty"`
	MaxConcurrent *int                `json:"max_concurrent,omitempty"`
	ServiceArea   *domain.ServiceArea `json:"service_area,omitempty"`
}

type heartbeatRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

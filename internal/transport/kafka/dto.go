package kafka

import (
	"strings"
	"time"

	"service-dispatch/internal/service/events"
)

// EventDTO is a data transfer object for events.Event
type EventDTO struct {
	DeliveryID string    `json:"delivery_id"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to events.Event
func ToDomain(dto EventDTO) events.Event {
	return events.Event{
		DeliveryID: strings.TrimSpace(dto.DeliveryID),
		Type:       strings.TrimSpace(dto.Type),
		Reason:     strings.TrimSpace(dto.Reason),
		CreatedAt:  dto.CreatedAt,
	}
}

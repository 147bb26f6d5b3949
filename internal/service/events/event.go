package events

import (
	"time"
)

// Event is a single delivery lifecycle event from the orders pipeline
type Event struct {
	DeliveryID string    `json:"delivery_id"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

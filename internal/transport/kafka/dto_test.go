package kafka_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/service/events"
	"service-dispatch/internal/transport/kafka"
)

func TestToDomain_TrimsAndCopiesFields(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	dto := kafka.EventDTO{
		DeliveryID: "  3f1c1e9a-0000-4000-8000-000000000001  ",
		Type:       "  cancelled  ",
		Reason:     "  customer_request  ",
		CreatedAt:  ts,
	}

	got := kafka.ToDomain(dto)

	require.Equal(t, events.Event{
		DeliveryID: "3f1c1e9a-0000-4000-8000-000000000001",
		Type:       "cancelled",
		Reason:     "customer_request",
		CreatedAt:  ts,
	}, got)
}

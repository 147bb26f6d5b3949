package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatch/internal/metrics"
	"service-dispatch/internal/service/bidding"
	"service-dispatch/internal/service/matching"
)

type countersOut struct {
	dig.Out
	RateLimit      prometheus.Counter `name:"rate_limit_exceeded_total"`
	GatewayRetries prometheus.Counter `name:"gateway_retries_total"`
}

func newCounters() countersOut {
	return countersOut{
		RateLimit:      registerCounter(metrics.NewRateLimitExceededTotal()),
		GatewayRetries: registerCounter(metrics.NewGatewayRetriesTotal()),
	}
}

func newMatchingCounters() matching.Counters {
	return matching.Counters{
		Rounds:   registerCounter(metrics.NewDispatchRoundsTotal()),
		Assigned: registerCounter(metrics.NewDeliveriesAssignedTotal()),
		Failed:   registerCounter(metrics.NewDeliveriesFailedTotal()),
		Expired:  registerCounter(metrics.NewAssignmentsExpiredTotal()),
	}
}

func newBiddingCounters() bidding.Counters {
	return bidding.Counters{
		Placed:   registerCounter(metrics.NewBidsPlacedTotal()),
		Closed:   registerCounter(metrics.NewBidWindowsClosedTotal()),
		Reopened: registerCounter(metrics.NewBidWindowsReopenedTotal()),
	}
}

// registerCounter registers the counter in the default registry. Test
// containers build the graph more than once per process, so an already
// registered collector is reused instead of panicking.
func registerCounter(c prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container,
		newCounters,
		newMatchingCounters,
		newBiddingCounters,
	)
}

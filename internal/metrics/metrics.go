package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}

// NewDispatchRoundsTotal returns a Prometheus counter for the number of dispatch rounds executed
func NewDispatchRoundsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rounds_total",
		Help: "Total number of dispatch rounds executed",
	})
}

// NewDeliveriesAssignedTotal returns a Prometheus counter for the number of deliveries accepted by a partner
func NewDeliveriesAssignedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_assigned_total",
		Help: "Total number of deliveries accepted by a partner",
	})
}

// NewDeliveriesFailedTotal returns a Prometheus counter for the number of deliveries that exhausted matching
func NewDeliveriesFailedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_failed_total",
		Help: "Total number of deliveries that exhausted matching",
	})
}

// NewAssignmentsExpiredTotal returns a Prometheus counter for the number of assignments that timed out
func NewAssignmentsExpiredTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignments_expired_total",
		Help: "Total number of assignments that timed out waiting for an accept",
	})
}

// NewBidsPlacedTotal returns a Prometheus counter for the number of bids placed
func NewBidsPlacedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_placed_total",
		Help: "Total number of bids placed",
	})
}

// NewBidWindowsClosedTotal returns a Prometheus counter for the number of bid windows settled
func NewBidWindowsClosedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bid_windows_closed_total",
		Help: "Total number of bid windows settled",
	})
}

// NewBidWindowsReopenedTotal returns a Prometheus counter for the number of bid windows reopened after no bids
func NewBidWindowsReopenedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bid_windows_reopened_total",
		Help: "Total number of bid windows reopened after receiving no valid bids",
	})
}

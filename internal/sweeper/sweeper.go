// Package sweeper drives the time-based housekeeping on a fixed interval:
// assignment expiry, matching retries and bid window settlement.
package sweeper

import (
	"context"
	"time"

	"service-dispatch/internal/logx"
)

type matcher interface {
	SweepExpired(ctx context.Context) (int, error)
	SweepStaleMatching(ctx context.Context) (int, error)
}

type auctioneer interface {
	CloseDue(ctx context.Context) (int, error)
}

// Sweeper runs the periodic maintenance pass.
type Sweeper struct {
	matcher    matcher
	auctioneer auctioneer
	interval   time.Duration
	logger     logx.Logger
}

// New creates a sweeper.
func New(m matcher, a auctioneer, interval time.Duration, logger logx.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Sweeper{matcher: m, auctioneer: a, interval: interval, logger: logger}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one maintenance pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.matcher != nil {
		expired, err := s.matcher.SweepExpired(ctx)
		if err != nil {
			s.logger.Error("sweep expired assignments", logx.Any("error", err))
		} else if expired > 0 {
			s.logger.Info("assignments expired", logx.Int("count", expired))
		}
		retried, err := s.matcher.SweepStaleMatching(ctx)
		if err != nil {
			s.logger.Error("retry stale matching", logx.Any("error", err))
		} else if retried > 0 {
			s.logger.Info("matching retried", logx.Int("count", retried))
		}
	}
	if s.auctioneer != nil {
		closed, err := s.auctioneer.CloseDue(ctx)
		if err != nil {
			s.logger.Error("close due bid windows", logx.Any("error", err))
		} else if closed > 0 {
			s.logger.Info("bid windows settled", logx.Int("count", closed))
		}
	}
}

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/repository"
)

var newPool = repository.NewPool

// connectDbWithRetry dials the database with a bounded per-attempt timeout.
// In compose environments the process usually starts before postgres is
// ready to accept connections, hence the retry loop.
func connectDbWithRetry(ctx context.Context, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	const attemptTimeout = 3 * time.Second
	for i := 1; i <= retries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := newPool(attemptCtx, dsn)
		cancel()
		if err == nil {
			log.Printf("database connected (attempt %d)", i)
			return pool, nil
		}
		lastErr = err
		log.Printf("database connect attempt %d/%d failed: %v", i, retries, err)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}

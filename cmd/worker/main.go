// The worker consumes upstream delivery events from Kafka and feeds them
// into the dispatch pipeline. It shares the DI graph with the API server
// but builds only the consumer side of it.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"service-dispatch/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := app.MustBuildWorkerContainer(ctx)
	app.NewWorkerRunner().MustRun(container)
}

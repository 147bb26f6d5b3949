package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-dispatch/internal/http/handlers"
	mw "service-dispatch/internal/http/middleware"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/http/pprofserver"
	"service-dispatch/internal/logx"
)

// Deps carries everything the router mounts.
type Deps struct {
	Base       *handlers.Handlers
	Partners   *handlers.PartnerHandler
	Deliveries *handlers.DeliveryHandler
	Matches    *handlers.MatchHandler
	Bids       *handlers.BidHandler
	RateLimit  *ratelimit.Middleware
	Pprof      pprofserver.Config
	Logger     logx.Logger
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))
	r.Use(mw.Observability(d.Logger))
	if d.RateLimit != nil {
		r.Use(d.RateLimit.Handler())
	}

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/debug/pprof/*", pprofserver.Handler(d.Pprof))

	r.Route("/partner", func(r chi.Router) {
		r.Post("/", d.Partners.Create)
		r.Put("/", d.Partners.Update)
		r.Get("/{id}", d.Partners.GetByID)
		r.Post("/{id}/heartbeat", d.Partners.Heartbeat)
	})
	r.Get("/partners", d.Partners.List)

	r.Route("/delivery", func(r chi.Router) {
		r.Post("/", d.Deliveries.Create)
		r.Get("/{id}", d.Deliveries.GetByID)
		r.Post("/{id}/cancel", d.Deliveries.Cancel)
		r.Post("/{id}/status", d.Deliveries.Progress)
		r.Get("/{id}/attempts", d.Deliveries.ListAttempts)
		r.Get("/{id}/bids", d.Deliveries.ListBids)
		r.Post("/{id}/accept", d.Matches.Accept)
		r.Post("/{id}/reject", d.Matches.Reject)
		r.Post("/{id}/bid", d.Bids.Submit)
	})
	r.Post("/bid/{id}/withdraw", d.Bids.Withdraw)

	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	return r
}

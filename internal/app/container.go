package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/pincode"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/pricing"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/bidding"
	"service-dispatch/internal/service/delivery"
	"service-dispatch/internal/service/matching"
	"service-dispatch/internal/service/partner"
	"service-dispatch/internal/servicearea"
	"service-dispatch/internal/sweeper"
	"service-dispatch/internal/transport/kafka"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// build builds and returns a new dig container
func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerGeo(container); err != nil {
		return nil, fmt.Errorf("geo: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		NewLogger,
		config.Load,
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

// registerGeo wires the partner location index. With REDIS_ADDR set the index
// lives in Redis and survives restarts; without it an in-process grid index is
// used, which is enough for a single instance.
func registerGeo(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) *redis.Client {
			if cfg.Redis.Addr == "" {
				return nil
			}
			return redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		},
		func(rdb *redis.Client) geo.Index {
			if rdb == nil {
				return geo.NewGridIndex(0)
			}
			return geo.NewRedisIndex(rdb)
		},
	)
}

type gatewayIn struct {
	dig.In
	Cfg     *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"gateway_retries_total"`
}

func newPincodeResolver(in gatewayIn) servicearea.PincodeResolver {
	client := pincode.NewClient(in.Cfg.Gateway.PincodeBaseURL, 5*time.Second)
	rr := pincode.NewRetryingResolver(client, in.Logger, in.Retries, pincode.RetryConfig{
		MaxAttempts: in.Cfg.Gateway.MaxAttempts,
		BaseDelay:   in.Cfg.Gateway.BaseDelay,
		MaxDelay:    in.Cfg.Gateway.MaxDelay,
	})
	if rr == nil {
		return nil
	}
	return rr
}

func newRateCard(cfg *config.Config) (pricing.RateCard, error) {
	perKm, err := decimal.NewFromString(cfg.Pricing.PerKmRate)
	if err != nil {
		return pricing.RateCard{}, fmt.Errorf("per km rate: %w", err)
	}
	perKg, err := decimal.NewFromString(cfg.Pricing.PerKgRate)
	if err != nil {
		return pricing.RateCard{}, fmt.Errorf("per kg rate: %w", err)
	}
	minCharge, err := decimal.NewFromString(cfg.Pricing.MinCharge)
	if err != nil {
		return pricing.RateCard{}, fmt.Errorf("min charge: %w", err)
	}
	return pricing.RateCard{PerKmRate: perKm, PerKgRate: perKg, MinCharge: minCharge}, nil
}

func biddingConfig(cfg *config.Config) domain.BiddingConfig {
	b := cfg.Bidding
	return domain.BiddingConfig{
		WindowMinutes:           b.WindowMinutes,
		MaxBidsPerDelivery:      b.MaxBidsPerDelivery,
		MaxActiveBidsPerPartner: b.MaxActiveBidsPerPartner,
		MinBidPercent:           b.MinBidPercent,
		MaxBidPercent:           b.MaxBidPercent,
		AutoSelectLowest:        b.AutoSelectLowest,
		AutoSelectAfterMinutes:  b.AutoSelectAfterMinutes,
		RetryWindowOnNoBids:     b.RetryWindowOnNoBids,
	}
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewDeliveryRepo,
		repository.NewPartnerRepo,
		func() time.Duration { return 3 * time.Second },
		newPincodeResolver,
		func(cfg *config.Config) (*kafka.Producer, error) {
			return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic)
		},
		func(p *kafka.Producer, logger logx.Logger) notify.Notifier {
			if p == nil {
				return notify.Nop()
			}
			return notify.NewEmitter(p, logger)
		},
		pricing.NewEngine,
		newRateCard,
		func(
			repo *repository.DeliveryRepo,
			index geo.Index,
			resolver servicearea.PincodeResolver,
			notifier notify.Notifier,
			cfg *config.Config,
			counters matching.Counters,
			logger logx.Logger,
		) *matching.Engine {
			return matching.NewEngine(repo, repo, index, resolver, notifier, cfg.Matching, counters, logger)
		},
		func(
			repo *repository.DeliveryRepo,
			notifier notify.Notifier,
			cfg *config.Config,
			counters bidding.Counters,
			logger logx.Logger,
		) *bidding.Engine {
			return bidding.NewEngine(repo, repo, notifier, biddingConfig(cfg), counters, logger)
		},
		func(
			repo *repository.DeliveryRepo,
			pricer *pricing.Engine,
			card pricing.RateCard,
			matcher *matching.Engine,
			bidder *bidding.Engine,
			logger logx.Logger,
		) *delivery.Service {
			return delivery.NewService(repo, repo, pricer, card, matcher, bidder, logger)
		},
		func(
			repo *repository.PartnerRepo,
			index geo.Index,
			timeout time.Duration,
			logger logx.Logger,
		) *partner.Service {
			return partner.NewService(repo, index, timeout, logger)
		},
		func(m *matching.Engine, b *bidding.Engine, cfg *config.Config, logger logx.Logger) *sweeper.Sweeper {
			return sweeper.New(m, b, cfg.Matching.SweepInterval, logger)
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	routerProvider := func(
		base *handlers.Handlers,
		partners *handlers.PartnerHandler,
		deliveries *handlers.DeliveryHandler,
		matches *handlers.MatchHandler,
		bids *handlers.BidHandler,
		rateLimit *ratelimit.Middleware,
		logger logx.Logger,
	) http.Handler {
		return router.New(router.Deps{
			Base:       base,
			Partners:   partners,
			Deliveries: deliveries,
			Matches:    matches,
			Bids:       bids,
			RateLimit:  rateLimit,
			Logger:     logger,
		})
	}
	return provideAll(container,
		handlers.New,
		handlers.NewPartnerUsecase,
		handlers.NewPartnerHandler,
		handlers.NewDeliveryUsecase,
		handlers.NewDeliveryHandler,
		handlers.NewMatchUsecase,
		handlers.NewMatchHandler,
		handlers.NewBidUsecase,
		handlers.NewBidHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		routerProvider,
		serverProvider,
	)
}

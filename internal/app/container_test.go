package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/sweeper"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:      8080,
		DB:        config.DefaultDB(),
		Kafka:     config.Kafka{},
		Gateway:   config.Gateway{},
		Matching:  config.DefaultMatching(),
		Pricing:   config.DefaultPricing(),
		Bidding:   config.DefaultBidding(),
		RateLimit: config.DefaultRateLimit(),
	}
}

func setupTestContainer(t *testing.T) *dig.Container {
	t.Helper()

	c := dig.New()

	providers := []struct {
		name     string
		provider any
	}{
		{"context", func() context.Context { return context.Background() }},
		{"logger", func() logx.Logger { return logx.Nop() }},
		{"config", testConfig},
		{"pgxpool", func() *pgxpool.Pool { return &pgxpool.Pool{} }},
	}

	for _, p := range providers {
		err := c.Provide(p.provider)
		require.NoErrorf(t, err, "provide %s", p.name)
	}

	require.NoError(t, registerGeo(c))
	require.NoError(t, registerMetrics(c))
	require.NoError(t, registerService(c))
	require.NoError(t, registerHTTP(c))

	return c
}

func verifyServer(t *testing.T, srv *http.Server) {
	t.Helper()

	require.NotNil(t, srv, "http.Server is nil")
	require.Equal(t, ":8080", srv.Addr)
	require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
	require.Greater(t, srv.ReadTimeout, time.Duration(0))
	require.Greater(t, srv.WriteTimeout, time.Duration(0))
	require.Greater(t, srv.IdleTimeout, time.Duration(0))
}

func TestRegisterServiceAndHTTP_ProvidesHttpServerAndHandlers(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)

	err := c.Invoke(func(
		srv *http.Server,
		base *handlers.Handlers,
		partnerHandler *handlers.PartnerHandler,
		deliveryHandler *handlers.DeliveryHandler,
		matchHandler *handlers.MatchHandler,
		bidHandler *handlers.BidHandler,
		sw *sweeper.Sweeper,
	) {
		verifyServer(t, srv)
		require.NotNil(t, base)
		require.NotNil(t, partnerHandler)
		require.NotNil(t, deliveryHandler)
		require.NotNil(t, matchHandler)
		require.NotNil(t, bidHandler)
		require.NotNil(t, sw)
	})
	require.NoError(t, err)
}

func TestProvideAll_Success(t *testing.T) {
	t.Parallel()

	c := dig.New()

	err := provideAll(c,
		func() context.Context { return context.Background() },
		func() time.Duration { return 3 * time.Second },
	)
	require.NoError(t, err)

	err = c.Invoke(func(ctx context.Context, d time.Duration) {
		require.NotNil(t, ctx)
		require.Equal(t, 3*time.Second, d)
	})
	require.NoError(t, err)
}

func TestProvideAll_InvalidProvider(t *testing.T) {
	t.Parallel()

	c := dig.New()

	type bad struct{}
	err := provideAll(c, bad{})
	require.Error(t, err)
}

func TestRegisterDb_UsesDbConnectAndProvidesPool(t *testing.T) {
	t.Parallel()

	c := dig.New()
	ctx := context.Background()
	cfg := testConfig()

	require.NoError(t, c.Provide(func() context.Context { return ctx }))
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))

	stubPool := &pgxpool.Pool{}
	stubConnect := func(
		gotCtx context.Context,
		dsn string,
		retries int,
		delay time.Duration,
	) (*pgxpool.Pool, error) {
		require.Equal(t, ctx, gotCtx)
		require.Equal(t, cfg.DB.DSN(), dsn)
		require.Equal(t, 10, retries)
		require.Equal(t, time.Second, delay)
		return stubPool, nil
	}

	require.NoError(t, registerDb(c, stubConnect))

	err := c.Invoke(func(pool *pgxpool.Pool) {
		require.Equal(t, stubPool, pool)
	})
	require.NoError(t, err)
}

func TestContainerBuilder_Build_Success(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	builder := NewContainerBuilder().
		WithDBConnect(func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error) {
			return &pgxpool.Pool{}, nil
		})

	c, err := builder.build(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)

	err = c.Invoke(func(gotCtx context.Context, logger logx.Logger) {
		require.Equal(t, ctx, gotCtx)
		require.NotNil(t, logger)
	})
	require.NoError(t, err)
}

func TestContainerBuilder_MustBuild_LogsFatalOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	builder := NewContainerBuilder().
		WithDBConnect(func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error) {
			return &pgxpool.Pool{}, nil
		}).
		WithLogFatalf(func(format string, args ...interface{}) {
			require.FailNowf(t, "logFatalf must not be called", format, args...)
		})

	c := builder.MustBuild(ctx)
	require.NotNil(t, c)
}

func TestNewRateCard_ParsesDecimals(t *testing.T) {
	t.Parallel()

	card, err := newRateCard(testConfig())
	require.NoError(t, err)
	require.Equal(t, "8.5", card.PerKmRate.String())
	require.Equal(t, "30", card.MinCharge.String())
}

func TestNewRateCard_BadValue(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pricing.MinCharge = "free"

	_, err := newRateCard(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "min charge")
}

func TestBiddingConfig_CopiesPolicy(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Bidding.MinBidPercent = 60
	cfg.Bidding.MaxBidPercent = 140

	got := biddingConfig(cfg)
	require.Equal(t, int64(60), got.MinBidPercent)
	require.Equal(t, int64(140), got.MaxBidPercent)
	require.Equal(t, cfg.Bidding.WindowMinutes, got.WindowMinutes)
	require.Equal(t, cfg.Bidding.RetryWindowOnNoBids, got.RetryWindowOnNoBids)
}

func TestConnectDbWithRetry_StopsAfterRetries(t *testing.T) {
	orig := newPool
	t.Cleanup(func() { newPool = orig })

	calls := 0
	newPool = func(context.Context, string) (*pgxpool.Pool, error) {
		calls++
		return nil, fmt.Errorf("refused")
	}

	_, err := connectDbWithRetry(context.Background(), "dsn", 3, time.Millisecond)
	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.Contains(t, err.Error(), "after 3 attempts")
}

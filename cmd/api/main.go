package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grocery-saver/internal/cart"
	"github.com/noah-isme/grocery-saver/internal/catalog"
	"github.com/noah-isme/grocery-saver/internal/config"
	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/health"
	"github.com/noah-isme/grocery-saver/internal/obs"
	"github.com/noah-isme/grocery-saver/internal/quote"
	"github.com/noah-isme/grocery-saver/internal/ratelimit"
	"github.com/noah-isme/grocery-saver/internal/resilience"
	"github.com/noah-isme/grocery-saver/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("grocery-saver exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "grocery-saver",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      "otlp",
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := openPostgres(startCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := openRedis(startCtx, cfg, tracingEnabled, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	breaker := resilience.NewBreaker(resilience.Settings{
		Name:         "catalog_postgres",
		MinRequests:  cfg.CatalogBreakerMinRequests,
		FailureRatio: cfg.CatalogBreakerFailureRatio,
		OpenFor:      cfg.CatalogBreakerOpenFor,
		Logger:       logger,
	})
	aggregator, err := cart.NewAggregator(cart.Config{
		Catalog:     couponCatalog(cfg, pool, redisClient, breaker, logger),
		Engine:      coupon.NewEngine(cfg.StackingMaxCombinable),
		Logger:      logger,
		Concurrency: cfg.CatalogFetchConcurrency,
		Timeout:     cfg.CatalogQueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("cart aggregator: %w", err)
	}

	limiter, err := newLimiter(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	router := newRouter(cfg, routerDeps{
		logger:  logger,
		tracing: tracingEnabled,
		quotes:  quote.NewHandler(quote.HandlerConfig{Aggregator: aggregator}),
		rateLimit: ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
			},
		},
		health: health.Handler{
			Checker:      readinessChecker{db: pool, redis: redisClient},
			DBTimeout:    500 * time.Millisecond,
			RedisTimeout: 300 * time.Millisecond,
			CatalogState: func() string { return breaker.State().String() },
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	drain(srv, cfg.ShutdownGrace, logger)
	return nil
}

func openPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "grocery-saver"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openRedis(ctx context.Context, cfg *config.Config, tracing bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// couponCatalog reads coupons from postgres behind the breaker. A positive
// CATALOG_CACHE_TTL puts a redis read-through cache in front.
func couponCatalog(cfg *config.Config, pool *pgxpool.Pool, client *redis.Client, breaker *resilience.Breaker, logger zerolog.Logger) catalog.Catalog {
	guarded := catalog.Guarded{Source: catalog.NewStore(pool), Breaker: breaker}
	if cfg.CatalogCacheTTL <= 0 {
		return guarded
	}
	return catalog.Cached{
		Source: guarded,
		Cache:  catalog.NewCache(client, cfg.CatalogCacheTTL),
		Prefix: "grocery:coupons:",
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("coupon catalog cache")
		},
	}
}

type routerDeps struct {
	logger    zerolog.Logger
	tracing   bool
	quotes    *quote.Handler
	rateLimit ratelimit.Handler
	health    health.Handler
}

func newRouter(cfg *config.Config, deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if deps.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		metrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: deps.logger}.Middleware)
	r.Use(security.Headers{Enabled: cfg.SecurityHeaders, HSTSMaxAge: cfg.HSTSMaxAge, NoStore: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", deps.health.Live)
	r.Get("/health/ready", deps.health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(deps.rateLimit.Middleware)
		deps.quotes.Register(v)
	})
	return r
}

func drain(srv *http.Server, grace time.Duration, logger zerolog.Logger) {
	health.SetReady(false)
	logger.Info().Dur("grace", grace).Msg("server draining")
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
		return
	}
	logger.Info().Msg("server stopped")
}

func newLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Limiter, error) {
	if !cfg.RateLimitEnabled() {
		return nil, nil
	}
	const prefix = "grocery:ratelimit:"
	if cfg.RateLimitStrategy == config.RateLimitFixed {
		fixed, err := ratelimit.NewFixedWindow(client, prefix)
		if err != nil {
			return nil, err
		}
		return fixed, nil
	}
	return ratelimit.SlidingWindow{Client: client, Prefix: prefix}, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

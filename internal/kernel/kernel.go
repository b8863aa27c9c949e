// Package kernel builds the process: repositories, services, HTTP handler
// and scheduled jobs, all from one explicit Config.
package kernel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/offersync/app/clients"
	"github.com/shashiranjanraj/offersync/app/controllers"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/app/routes"
	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/config"
	"github.com/shashiranjanraj/offersync/pkg/cache"
	"github.com/shashiranjanraj/offersync/pkg/event"
	"github.com/shashiranjanraj/offersync/pkg/lock"
	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/metrics"
	"github.com/shashiranjanraj/offersync/pkg/middleware"
	"github.com/shashiranjanraj/offersync/pkg/reqid"
	"github.com/shashiranjanraj/offersync/pkg/response"
	"github.com/shashiranjanraj/offersync/pkg/router"
	"github.com/shashiranjanraj/offersync/pkg/schedule"
)

const (
	syncJobName = "offers:sync"
	redisPrefix = "offersync:"
	lockTTL     = 30 * time.Second
)

// Config is everything the kernel reads from the environment.
type Config struct {
	UpstreamBaseURL       string
	UpstreamTimeout       time.Duration
	UpstreamRatePerMinute int

	RedisAddr     string
	RedisPassword string

	SyncInterval time.Duration
	SyncCron     string
	SyncPolicy   services.FailurePolicy
	SyncWorkers  int

	TrendWindow     time.Duration
	ListingCacheTTL time.Duration
	HTTPRateLimit   int
}

// FromEnv reads Config through the config package.
func FromEnv() Config {
	return Config{
		UpstreamBaseURL:       config.UpstreamBaseURL(),
		UpstreamTimeout:       config.UpstreamTimeout(),
		UpstreamRatePerMinute: config.UpstreamRatePerMinute(),
		RedisAddr:             config.RedisAddr(),
		RedisPassword:         config.RedisPassword(),
		SyncInterval:          config.SyncInterval(),
		SyncCron:              config.SyncCron(),
		SyncPolicy:            services.ParseFailurePolicy(config.SyncFailurePolicy()),
		SyncWorkers:           config.SyncWorkers(),
		TrendWindow:           config.TrendDefaultWindow(),
		ListingCacheTTL:       config.ListingCacheTTL(),
		HTTPRateLimit:         config.HTTPRateLimit(),
	}
}

// Option overrides a dependency the kernel would otherwise build itself.
type Option func(*Kernel)

// WithVendor replaces the HTTP vendor client.
func WithVendor(v services.Vendor) Option {
	return func(k *Kernel) { k.vendor = v }
}

// WithClock replaces the wall clock.
func WithClock(c services.Clock) Option {
	return func(k *Kernel) { k.clock = c }
}

// Kernel owns the wired services of one process.
type Kernel struct {
	cfg    Config
	db     *gorm.DB
	redis  *redis.Client
	vendor services.Vendor
	clock  services.Clock

	Bus     *event.Bus
	Auth    *services.Authenticator
	Catalog *services.CatalogService
	Sync    *services.SyncEngine
	Trend   *services.TrendAnalyzer
}

// New wires the services on top of db. Redis backs the locks and the
// listing cache when cfg.RedisAddr is set; in-process implementations are
// used otherwise.
func New(ctx context.Context, cfg Config, db *gorm.DB, opts ...Option) (*Kernel, error) {
	k := &Kernel{cfg: cfg, db: db, clock: services.SystemClock{}, Bus: event.New()}
	for _, opt := range opts {
		opt(k)
	}

	if k.vendor == nil {
		if cfg.UpstreamBaseURL == "" {
			return nil, config.ErrMissingUpstream
		}
		k.vendor = clients.NewVendorClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout,
			clients.WithRatePerMinute(cfg.UpstreamRatePerMinute))
	}

	var (
		locks lock.Locker = lock.NewMemory()
		store cache.Store = cache.NewMemory()
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("kernel: %w", err)
		}
		k.redis = rdb
		locks = lock.NewRedis(rdb, redisPrefix+"lock:", lockTTL)
		store = cache.NewRedis(rdb, redisPrefix)
		logger.Info("using redis for locks and cache", "addr", cfg.RedisAddr)
	}

	tx := repositories.NewTxManagerGorm(db)
	products := repositories.NewProductGormRepository(db)
	offers := repositories.NewOfferGormRepository(db)
	instances := repositories.NewInstanceGormRepository(db)
	creds := services.NewCredentials(instances)

	k.Auth = services.NewAuthenticator(instances, k.vendor, k.clock)
	k.Catalog = services.NewCatalogService(tx, products, creds, k.vendor, locks, k.Bus)
	if cfg.ListingCacheTTL > 0 {
		k.Catalog.WithListingCache(store, cfg.ListingCacheTTL)
	}
	k.Sync = services.NewSyncEngine(tx, products, creds, k.vendor, locks, k.clock, k.Bus).
		WithPolicy(cfg.SyncPolicy, cfg.SyncWorkers)
	k.Trend = services.NewTrendAnalyzer(products, offers, k.clock, cfg.TrendWindow)

	k.Bus.Listen(event.CatalogChanged, func(ctx context.Context, payload interface{}) {
		logger.WithCtx(ctx).Debug("catalog changed", "product_id", payload)
	})

	return k, nil
}

// Router builds the router with every route mounted.
func (k *Kernel) Router() *router.Router {
	r := router.New()

	// Outermost first: metrics see total latency, recovery guards the rest,
	// the request id exists before anything logs.
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "health", k.health)

	routes.RegisterAPI(r,
		controllers.NewProductController(k.Catalog, k.Trend),
		controllers.NewSyncController(k.Sync),
		middleware.NewRateLimiter(k.cfg.HTTPRateLimit).Middleware,
	)
	return r
}

// Handler is Router().Handler().
func (k *Kernel) Handler() http.Handler {
	return k.Router().Handler()
}

func (k *Kernel) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := k.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err == nil && k.redis != nil {
		err = k.redis.Ping(r.Context()).Err()
	}
	if err != nil {
		logger.WithCtx(r.Context()).Error("health check failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	response.Success(w, map[string]string{"status": "ok"})
}

// Schedule registers the periodic sync cycle on s. SyncCron wins over
// SyncInterval when both are set.
func (k *Kernel) Schedule(s *schedule.Scheduler) error {
	var b *schedule.Builder
	if k.cfg.SyncCron != "" {
		b = s.Cron(k.cfg.SyncCron)
	} else {
		b = s.Interval(k.cfg.SyncInterval)
	}

	return b.Name(syncJobName).WithoutOverlapping().Run(func(ctx context.Context) {
		ctx = logger.With(ctx, "job", syncJobName)
		// RunCycle logs its own failures.
		_, _ = k.Sync.RunCycle(ctx)
	})
}

// Close waits for pending event listeners and releases the Redis client.
// The database belongs to the caller.
func (k *Kernel) Close() error {
	k.Bus.Wait()
	if k.redis != nil {
		return k.redis.Close()
	}
	return nil
}

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
	_ "time/tzdata" // timezone config must resolve in minimal images

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ratings/internal/adapters/http/api"
	"github.com/okian/ratings/internal/adapters/http/swagger"
	app "github.com/okian/ratings/internal/app"
	"github.com/okian/ratings/internal/config"
	"github.com/okian/ratings/internal/scheduler"
	"github.com/okian/ratings/pkg/distributed"
	"github.com/okian/ratings/pkg/logger"
	"github.com/okian/ratings/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 5 * time.Minute // manual recalculations hold the request open
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	redisPingTimeout       = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "ratings service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	registerRuntimeCollectors()

	opts, cleanup, err := serviceOptions(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(mux)
	swagger.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info(ctx, "server stopped")
		return nil
	})
	return g.Wait()
}

// serviceOptions maps cfg onto service options. cleanup releases the Redis
// client when one was opened.
func serviceOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]app.Option, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	schedOpts := []scheduler.Option{
		scheduler.WithCheckInterval(cfg.CheckInterval),
		scheduler.WithRunHour(cfg.RunHour),
		scheduler.WithRunDay(cfg.RunDay),
	}
	cleanup := func() {}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		lock, err := distributed.NewRunLock(client,
			distributed.WithTTL(cfg.RedisLockTTL),
			distributed.WithKeyPrefix(cfg.RedisLockPrefix),
		)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		schedOpts = append(schedOpts, scheduler.WithRunGuard(runGuard{lock: lock}))
		cleanup = func() { _ = client.Close() }
		log.Info(ctx, "cross-instance run lock enabled", logger.String("redis", cfg.RedisAddr))
	}

	return []app.Option{
		app.WithLogger(log),
		app.WithParams(cfg.GlickoParams()),
		app.WithLocation(loc),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithIngestWorkers(cfg.IngestWorkers),
		app.WithQueueSize(cfg.QueueSize),
		app.WithSchedulerOptions(schedOpts...),
	}, cleanup, nil
}

// runGuard hands Redis locks to the scheduler as renewable leases.
type runGuard struct {
	lock *distributed.RunLock
}

var _ scheduler.RunGuard = runGuard{}

func (g runGuard) TryAcquire(ctx context.Context, key string) (scheduler.Lease, bool, error) {
	l, err := g.lock.Acquire(ctx, key)
	if err != nil || l == nil {
		return nil, false, err
	}
	return l, true, nil
}

// registerRuntimeCollectors adds Go runtime and process metrics to the
// service registry. Registering twice is harmless.
func registerRuntimeCollectors() {
	reg := metrics.GetRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// startServiceMetricsUpdater refreshes the gauges derived from GetStats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}

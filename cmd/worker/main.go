// Command worker runs the dispatch pool, the retry pipeline, and the
// periodic discovery sweep. It owns every outbound call to the push
// gateway; cmd/api never dispatches a job itself.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/config"
	"github.com/notifyhub/pushsched/internal/db"
	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/dispatch"
	"github.com/notifyhub/pushsched/internal/gateway"
	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/metrics"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/ratelimiter"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/retry"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := jobqueue.New(redisClient, cfg.QueuePoll)
	gen := idgen.UUID{}
	catalog := tzcatalog.New()
	limiter := ratelimiter.New(cfg.GatewayRateLimit)
	gw := gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)

	scheduleRepo := repository.NewPgScheduleRepository(pool)
	userRepo := repository.NewPgUserRepository(pool)
	logRepo := repository.NewPgLogRepository(pool)
	historyRepo := repository.NewPgHistoryRepository(pool)

	p := planner.New(q, catalog, gen, nil)
	disc := discovery.New(scheduleRepo, userRepo, p, catalog, logger)
	retryPipeline := retry.New(q, scheduleRepo, userRepo, logRepo, gw, gen, logger).
		WithLimiter(limiter).WithMetrics(m)
	dispatcher := dispatch.New(scheduleRepo, userRepo, logRepo, historyRepo, gw, p, disc, retryPipeline, gen, nil, logger).
		WithLimiter(limiter).WithMetrics(m)

	// ---- dispatch pool ----
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workerPool := dispatch.NewPool(cfg.DispatchWorkers, q, dispatcher, retryPipeline, logger)
	workerPool.Start(workerCtx)

	// ---- periodic discovery sweep ----
	// Catch-all safety net on top of the registration-hook and
	// post-firing sweeps: catches any active daily schedule/timezone
	// combination those two event-driven paths missed.
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		ticker := time.NewTicker(cfg.DiscoverySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if err := disc.PostFiringSweep(workerCtx, ""); err != nil {
					logger.Warn("periodic discovery sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// ---- Prometheus scrape endpoint ----
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.Int("dispatch_workers", cfg.DispatchWorkers),
		zap.String("metrics_addr", metricsSrv.Addr))

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	cancelWorkers()
	workerPool.Wait()
	sweepWG.Wait()

	logger.Info("worker stopped cleanly")
}

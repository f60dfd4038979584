// Command api serves the HTTP layer: schedule CRUD, device registration,
// and history/stats reads. Dispatching and retrying jobs is cmd/worker's
// job — this process only plans jobs onto the Redis queue (schedule
// creation, pause/resume, device-registration discovery) and reports its
// depth; it never dequeues or dispatches one.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/api"
	"github.com/notifyhub/pushsched/internal/config"
	"github.com/notifyhub/pushsched/internal/db"
	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/metrics"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/schedule"
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

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	redisClient, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	_ = metrics.New(reg)
	q := jobqueue.New(redisClient, cfg.QueuePoll)
	gen := idgen.UUID{}
	catalog := tzcatalog.New()

	scheduleRepo := repository.NewPgScheduleRepository(pool)
	userRepo := repository.NewPgUserRepository(pool)
	logRepo := repository.NewPgLogRepository(pool)
	historyRepo := repository.NewPgHistoryRepository(pool)

	p := planner.New(q, catalog, gen, nil)
	scheduleSvc := schedule.New(scheduleRepo, userRepo, p, gen, nil)
	disc := discovery.New(scheduleRepo, userRepo, p, catalog, logger)

	// ---- HTTP server ----
	router := api.NewRouter(scheduleSvc, historyRepo, logRepo, disc, q, catalog, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("api server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("api server stopped cleanly")
}

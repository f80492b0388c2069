// jobmate apply-service
//
// Background collaborator of the apply agent:
//   - answers agent requests on the Redis list APPLY_REQUEST_QUEUE
//     (rate-limit checks, outcomes, settings, profile, stats, history,
//     sessions, export)
//   - keeps the application history in PostgreSQL (newest 1000 records)
//   - resets the daily and hourly counters on a cron schedule
//   - serves /health, /stats, /history and /settings over HTTP
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobmate/apply-service/internal/background"
	"jobmate/apply-service/internal/config"
	"jobmate/apply-service/internal/db"
	"jobmate/apply-service/internal/history"
	"jobmate/apply-service/internal/messaging"
	"jobmate/apply-service/internal/scheduler"
	"jobmate/apply-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	if err := config.LoadDotenv(); err != nil {
		log.Fatalf("[apply-service] %v", err)
	}
	cfg, err := config.LoadService()
	if err != nil {
		log.Fatalf("[apply-service] Config error: %v", err)
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[apply-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("[apply-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	hist := history.NewPostgres(pool)
	if err := hist.EnsureSchema(ctx); err != nil {
		log.Fatalf("[apply-service] PostgreSQL: %v", err)
	}
	log.Println("[apply-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[apply-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[apply-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[apply-service] Redis connected ✓")

	svc := background.NewService(store.NewRedis(rdb, cfg.KeyPrefix), hist, background.WithLogger(logger))

	// ── Message server ───────────────────────────────────────────────────────
	router := messaging.NewRouter(logger)
	svc.Register(router)
	msgServer := messaging.NewRedisServer(rdb, cfg.RequestQueue, router, logger)
	msgDone := make(chan error, 1)
	go func() { msgDone <- msgServer.Run(ctx) }()

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(svc, cfg.Location, logger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[apply-service] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	background.NewHandler(svc).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[apply-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[apply-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[apply-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[apply-service] Shutdown error: %v", err)
	}
	sched.Stop()
	cancel()
	if err := <-msgDone; err != nil {
		log.Printf("[apply-service] Message server error: %v", err)
	}
	log.Println("[apply-service] Stopped.")
}

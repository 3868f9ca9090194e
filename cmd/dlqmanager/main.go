package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/config"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/outbox"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/persistence/postgres"
)

const defaultDLQBatchSize = 50

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	repo := postgres.NewRepository(pool)
	drafts := domain.NewService(repo, repo, repo, domain.WithDraftTTL(cfg.DraftTTL))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("maintenance metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	dlqTicker := time.NewTicker(cfg.DLQPollInterval)
	defer dlqTicker.Stop()
	cleanupTicker := time.NewTicker(cfg.DraftCleanupInterval)
	defer cleanupTicker.Stop()

	log.Printf("maintenance worker started (dlq_interval=%s, max_retries=%d, draft_cleanup_interval=%s)",
		cfg.DLQPollInterval, cfg.DLQMaxRetries, cfg.DraftCleanupInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-dlqTicker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				log.Printf("dlq manager error: %v", err)
			} else if processed > 0 {
				log.Printf("dlq manager processed %d entries", processed)
			}
		case <-cleanupTicker.C:
			purged, err := drafts.PurgeExpiredDrafts(ctx)
			if err != nil {
				log.Printf("draft cleanup error: %v", err)
			} else if purged > 0 {
				log.Printf("draft cleanup removed %d expired drafts", purged)
			}
		case <-stop:
			log.Println("maintenance worker received shutdown signal")
			cancel()
			break loop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

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

	"github.com/joshua0624/gym-brain-v2-sub001/internal/api"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/config"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/outbox"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/persistence/memory"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/persistence/postgres"
	httptransport "github.com/joshua0624/gym-brain-v2-sub001/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		drafts     domain.DraftRepository
		workouts   domain.WorkoutRepository
		exercises  domain.ExerciseRepository
		dispatcher *outbox.Dispatcher
	)

	switch cfg.StorageBackend {
	case config.StorageMemory:
		log.Printf("using in-memory storage; data is lost on restart")
		store := memory.NewStore(nil)
		drafts, workouts, exercises = store, store, store
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		repo := postgres.NewRepository(pool)
		drafts, workouts, exercises = repo, repo, repo

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	default:
		log.Fatalf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	service := domain.NewService(drafts, workouts, exercises, domain.WithDraftTTL(cfg.DraftTTL))

	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	accessLog := log.New(log.Writer(), "[http] ", log.LstdFlags)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(accessLog, httptransport.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("workout sync api listening on %s (storage=%s)", cfg.HTTPAddress, cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}

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

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/config"
	"github.com/raczniakservices/HVAC/internal/consumer"
	"github.com/raczniakservices/HVAC/internal/logger"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/queue/sqs"
	"github.com/raczniakservices/HVAC/internal/repository/clickhouse"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, "consumer", cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Activity consumer failed", zap.Error(err))
	}
	log.Info("Activity consumer stopped")
}

// run drains the activity queue into the ledger until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if !cfg.SQS.Enabled() || !cfg.ClickHouse.Enabled() {
		return errors.New("activity consumer needs SQS_QUEUE_URL and CLICKHOUSE_HOST")
	}

	log.Info("Starting activity consumer",
		zap.String("environment", cfg.Service.Environment),
		zap.String("queue_url", cfg.SQS.QueueURL))

	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		return err
	}
	defer func() { _ = chClient.Close() }()

	ledger := clickhouse.NewRepository(chClient, log)
	if err := ledger.InitSchema(ctx); err != nil {
		return err
	}

	queueClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	pipeline := consumer.NewConsumer(consumer.OptionsFromConfig(cfg.Consumer), queueClient, ledger, recorder, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := ledger.Ping(r.Context()); err != nil {
			log.Warn("Ledger health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", recorder.Handler())

	healthSrv := &http.Server{
		Addr:              ":" + cfg.Consumer.HealthCheckPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health endpoint listening", zap.String("address", healthSrv.Addr))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health endpoint failed", zap.Error(err))
		}
	}()

	// Start returns once every stage has drained after ctx is cancelled.
	err = pipeline.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Health endpoint shutdown failed", zap.Error(err))
	}
	return err
}

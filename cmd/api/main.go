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
	"github.com/raczniakservices/HVAC/internal/handler"
	"github.com/raczniakservices/HVAC/internal/logger"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/queue"
	"github.com/raczniakservices/HVAC/internal/queue/sqs"
	"github.com/raczniakservices/HVAC/internal/repository/clickhouse"
	"github.com/raczniakservices/HVAC/internal/repository/sqlite"
	"github.com/raczniakservices/HVAC/internal/service"
	"github.com/raczniakservices/HVAC/internal/sla"
	"github.com/raczniakservices/HVAC/internal/telephony"
)

const shutdownTimeout = 10 * time.Second

// @title Lead Triage API
// @version 1.0
// @description Records inbound HVAC leads and the office's triage of them
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, "api", cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	dashboard, err := config.LoadDashboard(cfg.Dashboard.ConfigPath)
	if err != nil {
		log.Fatal("Failed to load dashboard config", zap.Error(err))
	}

	// Initialize event store
	dbClient, err := sqlite.NewClient(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to open event store", zap.Error(err))
	}
	defer func(dbClient *sqlite.Client) {
		if err := dbClient.Close(); err != nil {
			log.Error("Failed to close event store", zap.Error(err))
		}
	}(dbClient)

	repo := sqlite.NewRepository(dbClient, log)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	recorder := metrics.New()
	opts := []service.Option{
		service.WithMetrics(recorder),
		service.WithDashboard(*dashboard),
	}

	// Activity publishing is optional
	var publisher queue.ActivityPublisher = queue.NopPublisher{}
	if cfg.SQS.Enabled() {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("Failed to create SQS client", zap.Error(err))
		}
		publisher = sqsClient
	} else {
		log.Info("SQS not configured, lead activity will not be published")
	}

	// Response-time reports need the ledger
	if cfg.ClickHouse.Enabled() {
		clickhouseClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("Failed to create ClickHouse client", zap.Error(err))
		}
		defer func(clickhouseClient *clickhouse.Client) {
			if err := clickhouseClient.Close(); err != nil {
				log.Error("Failed to close ClickHouse client", zap.Error(err))
			}
		}(clickhouseClient)
		opts = append(opts, service.WithLedger(clickhouse.NewRepository(clickhouseClient, log)))
	}

	leadService := service.NewLeadService(repo, publisher, sla.NewThresholdPolicy(cfg.SLA.OverdueAfter()), log, opts...)

	if cfg.Service.OperatorKey == "" {
		log.Warn("SERVICE_OPERATOR_KEY not set; the lead API is open to anyone who can reach it")
	}

	authToken := ""
	if cfg.Telephony.ValidateSignature {
		authToken = cfg.Telephony.AuthToken
		if authToken == "" {
			log.Warn("TELEPHONY_AUTH_TOKEN not set; skipping telephony signature verification")
		}
	}

	h := handler.NewHandler(leadService, telephony.NewValidator(authToken), recorder, handler.Options{
		OperatorKey:   cfg.Service.OperatorKey,
		PublicBaseURL: cfg.Telephony.PublicBaseURL,
	}, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Service.APIPort),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API server gracefully")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

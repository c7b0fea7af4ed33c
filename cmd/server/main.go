package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storix-vn/payment-service/internal/adapters/momo"
	"github.com/storix-vn/payment-service/internal/adapters/postgres"
	"github.com/storix-vn/payment-service/internal/config"
	"github.com/storix-vn/payment-service/internal/domain/ports"
	paymenthandler "github.com/storix-vn/payment-service/internal/handlers/payment"
	"github.com/storix-vn/payment-service/internal/middleware"
	"github.com/storix-vn/payment-service/internal/observability"
	paymentservice "github.com/storix-vn/payment-service/internal/services/payment"
	"github.com/storix-vn/payment-service/pkg/security"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := security.NewZapLoggerWithLevel(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", ports.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	secretKey, err := resolveMomoSecretKey(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to resolve MoMo secret key", ports.Err(err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	ledger := postgres.NewPaymentLedger(db, logger)
	companies := postgres.NewCompanyDirectory(db, logger)

	gateway := momo.NewAtmAdapter(momo.Config{
		PartnerCode: cfg.Momo.PartnerCode,
		AccessKey:   cfg.Momo.AccessKey,
		SecretKey:   secretKey,
		PaymentURL:  cfg.Momo.PaymentURL,
		BaseURL:     cfg.Momo.BaseURL,
		ReturnURL:   cfg.Momo.ReturnURL,
		NotifyURL:   cfg.Momo.NotifyURL,
	}, &http.Client{Timeout: time.Duration(cfg.Momo.Timeout) * time.Second}, logger)

	service := paymentservice.NewService(ledger, companies, gateway, logger, metrics)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(middleware.RequestMetrics(metrics))
	router.Use(middleware.CompanyContext)

	paymenthandler.NewHandler(service, logger).Routes(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server listening", ports.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", ports.Err(err))
		}
	}()

	go func() {
		logger.Info("payment service listening", ports.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", ports.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", ports.Err(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", ports.Err(err))
	}
}

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/api"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/api/middleware"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/cache"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/repository"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/service"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/shipping"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/pkg/config"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/pkg/db"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func serviceConfig(cfg config.Config) service.Config {
	return service.Config{
		Rate:             models.Rate{PerKg: cfg.PerKgRate, Minimum: cfg.MinimumCharge},
		Weights: shipping.WeightPolicy{
			Mode:                shipping.WeightMode(cfg.WeightCalculation),
			DefaultItemWeightKg: cfg.DefaultItemWeightKg,
			FixedWeightKg:       cfg.FixedWeightKg,
			MinimumWeightKg:     cfg.MinimumWeightKg,
		},
		BatchConcurrency: cfg.BatchConcurrency,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.EnvFileLoaded {
		log.Info("loaded .env")
	}
	if cfg.RateFile != "" {
		log.Info("loaded rate card", zap.String("path", cfg.RateFile))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// repositories stay nil interfaces without a database
	var (
		carts  service.CartRepo
		orders service.OrderRepo
	)
	dbCfg, err := db.LoadPostgresConfig()
	if err != nil {
		return err
	}
	if dbCfg.Enabled() {
		var conn *sql.DB
		conn, err = db.NewPostgresConnection(ctx, dbCfg)
		if err != nil {
			log.Error("db connect", zap.Error(err))
			return err
		}
		defer conn.Close()
		carts = repository.NewCartRepo(conn)
		orders = repository.NewOrderRepo(conn)
	} else {
		log.Warn("DB_HOST not set, cart and order quotes are disabled")
	}

	var qc cache.QuoteCache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Error("redis connect", zap.Error(err))
			return err
		}
		defer client.Close()
		qc = cache.NewRedisCache(client, cfg.CacheTTL)
	case config.CacheMemory:
		qc = cache.NewMemoryCache(cfg.CacheTTL)
	default:
		qc = cache.Noop{}
	}

	svc := service.NewShippingService(carts, orders, qc, serviceConfig(cfg), log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(log))
	r.Mount("/", api.NewRouter(svc, log))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("HTTP server Shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	log.Info("starting shipping-service",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("per_kg_rate", cfg.PerKgRate.String()),
		zap.String("minimum_charge", cfg.MinimumCharge.String()),
		zap.String("quote_cache", cfg.CacheBackend),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-idleConnsClosed
	log.Info("server stopped")
	return nil
}

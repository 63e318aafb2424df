package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/catalog"
	"ms-storefront/internal/checkout"
	"ms-storefront/internal/config"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/payment"
	"ms-storefront/internal/storage"
	"ms-storefront/internal/storefront"
)

// buildPlacer picks the order-placement chain: Kafka or the log stub at the bottom,
// Stripe in front when a key is configured.
func buildPlacer(cfg *config.Config, log *logger.Logger) (checkout.OrderPlacer, func(), error) {
	var placer checkout.OrderPlacer = checkout.NewLogPlacer(log)
	cleanup := func() {}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.OrderTopic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		publisher := kafka.NewOrderPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, log)
		placer = publisher
		cleanup = func() {
			if err := publisher.Close(); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to close publisher: %v", err))
			}
		}
		log.Info("KAFKA", fmt.Sprintf("Orders will be published to %s via %v", cfg.Kafka.OrderTopic, cfg.Kafka.Brokers))
	} else {
		log.Warn("KAFKA", "KAFKA_ENABLED is false: orders are only logged")
	}

	if cfg.Stripe.SecretKey != "" {
		stripePlacer, err := payment.NewStripePlacer(cfg.Stripe, placer, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		placer = stripePlacer
	}

	return placer, cleanup, nil
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Dir:      cfg.Log.Dir,
		Service:  "storefront",
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Storefront Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("STORE", fmt.Sprintf("Failed to open %s store: %v", cfg.Store.Backend, err))
	}
	defer backend.Close()

	placer, closePlacer, err := buildPlacer(cfg, log)
	if err != nil {
		log.Fatal("CHECKOUT", fmt.Sprintf("Failed to set up order placement: %v", err))
	}
	defer closePlacer()

	submitter := checkout.NewSubmitter(placer, checkout.NewQRGenerator(cfg.Auth.QRSecret), log)
	if rs, ok := backend.(*storage.Redis); ok {
		// share the in-flight guard with every instance on the same redis
		submitter.WithGuard(checkout.NewRedisGuard(rs.Client, 2*time.Minute))
		log.Info("CHECKOUT", "Using redis checkout lock")
	}

	httpClient := &http.Client{Timeout: cfg.Catalog.Timeout}
	handler := &storefront.Handler{
		Catalog:   catalog.NewClient(cfg.Catalog.BaseURL, httpClient, log),
		Backend:   backend,
		Submitter: submitter,
		CartKey:   cfg.Store.CartKey,
		Logger:    log,
	}
	log.Info("CATALOG", fmt.Sprintf("Using ticketing API at %s", cfg.Catalog.BaseURL))

	var adminAuth func(http.Handler) http.Handler
	if cfg.Auth.OIDCIssuer != "" {
		adminAuth, err = auth.NewMiddleware(ctx, cfg.Auth.OIDCIssuer, log)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC: %v", err))
		}
		log.Info("AUTH", "OIDC middleware applied to admin routes")
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      storefront.NewRouter(handler, adminAuth),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Storefront Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Storefront Service shutdown complete")
	}
}

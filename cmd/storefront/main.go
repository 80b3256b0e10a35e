// Command storefront runs the digital goods storefront API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bytebazaar/storefront/internal/app"
	"github.com/bytebazaar/storefront/internal/app/httpapi"
	"github.com/bytebazaar/storefront/internal/app/services/downloads"
	"github.com/bytebazaar/storefront/internal/app/storage/postgres"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/config"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
	"github.com/bytebazaar/storefront/internal/payments"
	stripeprovider "github.com/bytebazaar/storefront/internal/payments/stripe"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		envFile    = flag.String("env-file", ".env", "optional .env file with overrides")
		addr       = flag.String("addr", "", "listen address, overrides config")
	)
	flag.Parse()

	// Missing .env files are fine; explicit paths that fail to parse are not.
	if err := godotenv.Load(*envFile); err != nil && *envFile != ".env" {
		logging.NewDefault("main").WithError(err).Fatal("load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewDefault("main").WithError(err).Fatal("load configuration")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logging.New("storefront", cfg.Logging.Level)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("storefront exited")
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeDB, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	provider, webhook := buildProvider(cfg, log)

	deps := app.Deps{
		Blobs:    blobs,
		Provider: provider,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		deps.Tokens = downloads.NewRedisTokenStore(client)
		defer client.Close()
		log.WithField("addr", cfg.Redis.Addr).Info("download tokens backed by redis")
	}

	application, err := app.New(cfg, stores, deps, log)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(application, cfg, httpapi.Options{
		Webhook: webhook,
		Metrics: deps.Metrics,
	}, log)

	if err := application.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = application.Stop(context.Background())
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	return application.Stop(shutdownCtx)
}

// buildStores selects the persistence backend. With no DATABASE_URL the
// in-memory stores apply, which suits local development.
func buildStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (app.Stores, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("no database configured, using in-memory stores")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return app.Stores{}, nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}

	store := postgres.New(db)
	stores := app.Stores{
		Users:        store,
		Assets:       store,
		Products:     store,
		Purchases:    store,
		Transactions: store,
	}
	log.Info("postgres store ready")
	return stores, func() { db.Close() }, nil
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Blob.Backend {
	case "s3":
		return blobstore.NewS3(ctx, blobstore.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			AccessKey: cfg.Blob.S3AccessKey,
			SecretKey: cfg.Blob.S3SecretKey,
		})
	default:
		return blobstore.NewFS(cfg.Blob.FSDir)
	}
}

func buildProvider(cfg *config.Config, log *logging.Logger) (payments.Provider, payments.WebhookParser) {
	if cfg.Payments.Provider == "stripe" {
		p := stripeprovider.New(cfg.Payments.StripeKey, cfg.Payments.WebhookSecret)
		return p, p
	}
	log.Warn("using the fake payment provider, no real charges will happen")
	fake := payments.NewFake()
	return fake, fake
}

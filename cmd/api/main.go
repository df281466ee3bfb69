//	@title			upload.ee relay API
//	@version		1.0
//	@description	Relays files to upload.ee and returns their public download links.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/uploadee/relay/internal/config"
	"github.com/uploadee/relay/internal/db"
	"github.com/uploadee/relay/internal/logging"
	"github.com/uploadee/relay/internal/metrics"
	appMiddleware "github.com/uploadee/relay/internal/middleware"
	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/storage"
	"github.com/uploadee/relay/internal/upload"

	_ "github.com/uploadee/relay/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("config: " + w)
	}

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Optional upload history
	var store upload.Store
	if cfg.HistoryEnabled() {
		pool, err := db.Connect(startCtx, cfg.DatabaseURL)
		if err != nil {
			fatal("database connection failed", err)
		}
		defer pool.Close()

		applied, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			fatal("database migration failed", err)
		}
		logger.Info("upload history enabled", "migrated", applied)
		store = upload.NewRepository(pool)
	}

	// Optional archive copy
	var archive storage.Storage
	if cfg.ArchiveEnabled() {
		s, err := storage.NewMinioStorage(startCtx, storage.MinioConfig{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		}, logger)
		if err != nil {
			fatal("object storage init failed", err)
		}
		archive = s
		logger.Info("archive enabled", "bucket", cfg.StorageBucket)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewPrometheusObserver("uploadee", reg)
	if err != nil {
		fatal("metrics init failed", err)
	}

	// Wire dependencies: relay → service → handler
	uploadSvc := upload.NewService(upload.Config{
		Relay: upload.SessionRelay(session.Options{
			BaseURL: cfg.UploadeeBaseURL,
			Timeout: cfg.UploadeeTimeout,
		}, logger),
		Store:         store,
		Archive:       archive,
		Observer:      observer,
		MaxConcurrent: cfg.MaxConcurrentUploads,
		Logger:        logger,
	})
	uploadHandler := upload.NewHandler(uploadSvc, cfg.MaxUploadBytes, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
		} else if cfg.IsProduction() {
			logger.Warn("JWT_SECRET is empty; /api/v1 is open to anyone")
		}
		r.Route("/uploads", uploadHandler.Routes)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		// Relays hold the request open for the whole upload.ee round trip.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv)
		logger.Info("swagger UI", "url", "http://localhost:"+cfg.Port+"/swagger/")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", err)
		}
	}()

	<-quit
	logger.Info("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		fatal("forced shutdown", err)
	}

	logger.Info("server stopped")
}

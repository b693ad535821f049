// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command agencyd serves the agency content API and admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/config"
	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/geoip"
	"github.com/olegiv/agency-cms/internal/handler/api"
	"github.com/olegiv/agency-cms/internal/logging"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/scheduler"
	"github.com/olegiv/agency-cms/internal/seed"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/storage"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/version"
	"github.com/olegiv/agency-cms/internal/webhook"
)

// Per-IP limit across the whole API.
const (
	globalRPS   = 20
	globalBurst = 60
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "agencyd - agency content API server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_TOKEN_SECRET    Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_DB_PATH         SQLite database path (default: ./data/agency.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_API_PREFIX      API mount point (default: /api)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_REDIS_URL       Redis URL for the shared response cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENCY_MEDIA_BACKEND   local|s3 (default: local)\n")
	}
	flag.Parse()

	if *showVersion {
		info := version.Get()
		_, _ = fmt.Printf("agencyd %s (built: %s)\n", info, info.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	queries := store.New(db)

	// Mirror WARN and ERROR records into the audit log.
	logger = slog.New(logging.NewEventLogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}), queries))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := auth.NewTokens(cfg.TokenSecret, cfg.TokenTTL, cfg.TokenIssuer)
	authService := auth.NewService(queries, tokens, auth.NewHasher(auth.DefaultParams), logger)

	backend := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxSize:    cfg.CacheMaxSize,
	}, logger)
	defer func() { _ = backend.Close() }()
	tagged := cache.NewTagged(backend)

	if cfg.DoSeed {
		if err := seed.New(queries, authService, tagged, logger).Run(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("geoip disabled", "error", err)
	}
	defer func() { _ = geo.Close() }()

	webhookCfg := webhook.DefaultConfig()
	webhookCfg.Targets = cfg.WebhookURLs
	webhookCfg.Secret = cfg.WebhookSecret
	webhookCfg.AllowPrivate = cfg.IsDevelopment()
	dispatcher := webhook.NewDispatcher(queries, webhookCfg, logger)
	if dispatcher.Enabled() {
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}

	blobs, err := newBlobs(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing media storage: %w", err)
	}

	uploadsDir := cfg.UploadsDir
	if cfg.MediaBackend != config.MediaBackendLocal {
		uploadsDir = ""
	}

	events := service.NewEventService(queries, logger)
	renderer := content.NewRenderer()

	sched := scheduler.New(scheduler.Deps{
		Publisher: queries,
		Cache:     tagged,
		Events:    events,
		Webhooks:  dispatcher,
		GeoIP:     geo,
	}, logger)

	loginGuard := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginGuard.Stop()

	h := api.NewHandler(api.Deps{
		DB:         db,
		Queries:    queries,
		Auth:       authService,
		LoginGuard: loginGuard,
		Cache:      tagged,
		CacheTTL:   cfg.CacheTTLDuration(),
		Events:     events,
		Contacts:   service.NewContactService(queries, geo, dispatcher, events, logger),
		Media:      service.NewMediaService(queries, blobs, nil, logger),
		Notifier:   dispatcher,
		Renderer:   renderer,
		Scheduler:  sched,
		UploadsDir: uploadsDir,
		Version:    version.Get(),
		Logger:     logger,
	})

	if err := sched.Registry().Add(scheduler.JobPruneLimiters, "Drop idle per-IP rate limiters",
		"*/10 * * * *", func() error { h.PruneLimiters(); return nil }); err != nil {
		return fmt.Errorf("registering limiter job: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	r := newRouter(cfg, h, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Uploads over slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "api_prefix", cfg.APIPrefix, "version", version.Get().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newRouter builds the middleware stack and mounts the API under the
// configured prefix. Local media is served from /uploads.
func newRouter(cfg *config.Config, h *api.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.Timeout(30 * time.Second))

	global := middleware.NewGlobalRateLimiter(globalRPS, globalBurst)
	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Use(global.Middleware())
		h.Routes(r)
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			api.WriteNotFound(w, "Resource not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			middleware.WriteAPIError(w, http.StatusMethodNotAllowed, middleware.CodeBadRequest, "Method not allowed", nil)
		})
	})

	if cfg.MediaBackend == config.MediaBackendLocal {
		// Uploads: cache for 1 week
		uploads := middleware.StaticCache(604800, false)(http.StripPrefix(cfg.MediaBaseURL+"/", http.FileServer(http.Dir(cfg.UploadsDir))))
		r.Handle(cfg.MediaBaseURL+"/*", uploads)
	}

	return r
}

func newBlobs(ctx context.Context, cfg *config.Config) (storage.Blobs, error) {
	if cfg.MediaBackend == config.MediaBackendS3 {
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocal(cfg.UploadsDir, cfg.MediaBaseURL)
}

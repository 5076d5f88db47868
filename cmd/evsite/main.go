// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/evsite-go/internal/auth"
	"github.com/olegiv/evsite-go/internal/cache"
	"github.com/olegiv/evsite-go/internal/config"
	"github.com/olegiv/evsite-go/internal/handler"
	"github.com/olegiv/evsite-go/internal/handler/api"
	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/logging"
	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/scheduler"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/session"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/version"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// requestTimeout bounds every API request except the change streams.
const requestTimeout = 30 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "evsite - multi-tenant event microsite backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_SESSION_SECRET    Session and token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_DB_PATH           SQLite database path (default: ./data/evsite.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_PUBLIC_URL        Public base URL used in verification links\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_CORS_ORIGINS      Comma-separated SPA origins\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVSITE_REDIS_URL         Redis URL for caching and realtime fan-out (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("evsite %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
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

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready", "version", versionInfo.String())

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	eventLogHandler := logging.NewEventLogHandler(textHandler, db).WithRequestPath(middleware.GetRequestPath)
	logger = slog.New(eventLogHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.DoSeed {
		if err := seed(ctx, db, cfg); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	// Cache: Redis when configured and reachable, memory otherwise
	cacheConfig := cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheLifetime(),
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}
	backend := cache.New(ctx, cacheConfig)
	cacheManager := cache.NewManager(backend, cacheConfig)
	defer func() { _ = cacheManager.Close() }()

	// Realtime change feed, fanned out through Redis when available
	hub := realtime.NewHub(realtime.DefaultBuffer)
	defer hub.Close()
	var publisher realtime.Publisher = hub
	if rc, ok := backend.(*cache.RedisCache); ok {
		bridge := realtime.NewRedisBridge(rc.Client(), "", hub, logger)
		go func() {
			if err := bridge.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("realtime bridge stopped", "error", err)
			}
		}()
		publisher = bridge
		slog.Info("realtime fan-out enabled", "backend", "redis")
	}

	// Webhooks: repeated events about one entity are coalesced before delivery
	dispatcher := webhook.NewDispatcher(db, logger, webhook.DefaultConfig())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig(), func(err error, e *webhook.Event) {
		slog.Warn("webhook dispatch failed", "category", model.EventCategoryWebhook, "event", e.Type, "error", err)
	})
	defer debouncer.Stop()
	slog.Info("webhook dispatcher initialized")

	sched := scheduler.New(db, dispatcher, cfg.EventRetention(), logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	deps := service.Deps{
		DB:       db,
		Cache:    cacheManager,
		Realtime: publisher,
		Webhooks: debouncer,
		Logger:   logger,
	}
	processor := imaging.NewProcessor(cfg.UploadsDir)
	events := service.NewEventService(db, logger)
	settings := service.NewSettingsService(deps)
	users := service.NewUserService(deps, events, cfg.AllowSignup)

	sessionManager := session.New(db, cfg.IsDevelopment())
	tokens := auth.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.TokenLifetime())
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Close()

	apiHandler := api.NewHandler(api.Config{
		Projects:       service.NewProjectService(deps, events, processor),
		Settings:       settings,
		Registrations:  service.NewRegistrationService(deps, settings, cfg.PublicURL),
		Media:          service.NewMediaService(deps, processor),
		Users:          users,
		Webhooks:       service.NewWebhookService(deps, dispatcher),
		Events:         events,
		Hub:            hub,
		Sessions:       sessionManager,
		Tokens:         tokens,
		Login:          loginProtection,
		CSRF:           middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.CORSOrigins)),
		RequestTimeout: requestTimeout,
		Heartbeat:      api.DefaultHeartbeat,
		Logger:         logger,
	})
	healthHandler := handler.NewHealthHandler(db, cacheManager, cfg.UploadsDir, versionInfo)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestPath)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.NewRateLimiter(20, 40).Middleware())

	r.Mount(api.Prefix, apiHandler.Routes())

	// Masters authenticated by session or token get detailed health output
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.Authenticate(sessionManager, tokens, users))
		r.Get("/health", healthHandler.Health)
		r.Get("/health/ready", healthHandler.Readiness)
	})
	r.Get("/health/live", healthHandler.Liveness)

	uploads := http.StripPrefix(service.UploadsURLPrefix+"/", http.FileServer(http.Dir(cfg.UploadsDir)))
	r.Handle(service.UploadsURLPrefix+"/*", cacheFor(7*24*time.Hour, uploads))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // change streams clear their own deadline
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Cancelling ctx ends open change streams so Shutdown does not wait on them
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	debouncer.Flush()

	slog.Info("server stopped")
	return nil
}

// cacheFor sets a public Cache-Control max-age on responses from next.
func cacheFor(d time.Duration, next http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(d.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}

// seed creates the master account and a demo project with default pages.
func seed(ctx context.Context, db *sql.DB, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return errors.New("EVSITE_ADMIN_EMAIL and EVSITE_ADMIN_PASSWORD are required for seeding")
	}
	if err := auth.ValidatePassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	settings := make(map[string][]store.UpsertSiteSettingParams, len(model.Categories))
	for _, category := range model.Categories {
		rows, err := sections.Encode(sections.Defaults(category))
		if err != nil {
			return fmt.Errorf("encoding %s defaults: %w", category, err)
		}
		for _, row := range rows {
			settings[category] = append(settings[category], store.UpsertSiteSettingParams{
				Category:    category,
				Key:         row.Key,
				Value:       row.Value,
				Description: row.Description,
			})
		}
	}

	return store.Seed(ctx, db, store.SeedParams{
		AdminEmail:   cfg.AdminEmail,
		PasswordHash: hash,
		AdminName:    "Administrator",
		Settings:     settings,
	})
}

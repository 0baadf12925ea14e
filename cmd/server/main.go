// Package main runs the demo user HTTP service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	_ "github.com/lib/pq"

	"github.com/platformeng/demo-user-service/internal/config"
	"github.com/platformeng/demo-user-service/internal/database"
	"github.com/platformeng/demo-user-service/internal/httpapi"
	"github.com/platformeng/demo-user-service/internal/metrics"
	"github.com/platformeng/demo-user-service/internal/middleware"
	"github.com/platformeng/demo-user-service/internal/migrations"
	"github.com/platformeng/demo-user-service/internal/services/users"
	"github.com/platformeng/demo-user-service/internal/storage"
	"github.com/platformeng/demo-user-service/internal/storage/memory"
	"github.com/platformeng/demo-user-service/internal/storage/postgres"
	"github.com/platformeng/demo-user-service/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to optional YAML config file")
	envDir := flag.String("env-dir", "environments", "Directory holding <env>.env files")
	useMemory := flag.Bool("memory", false, "Run with the in-memory store instead of a database")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envDir)
	if err != nil {
		if !*useMemory {
			logger.NewDefault("server").WithError(err).Fatal("failed to load configuration")
		}
		cfg = config.Default()
	}

	log := logger.New("server", cfg.LogLevel)
	log.WithField("environment", cfg.Environment).Info("starting demo user service")

	m := metrics.New("demo_user_service")

	registry := database.NewRegistry(log)
	defer registry.Close()

	var store storage.UserStore
	var engine *database.Engine

	if *useMemory {
		log.Warn("running with in-memory store, data will not survive restarts")
		store = memory.New()
	} else {
		mode, err := database.DetectMode(cfg.Database.URI)
		if err != nil {
			log.WithError(err).Fatal("invalid database URI")
		}
		if err := database.RequirePostgres(cfg.Database.URI); err != nil {
			log.WithError(err).Fatal("unsupported database dialect")
		}

		eng, factory, err := registry.GetOrCreate(cfg.Database.URI, mode, cfg.Database.PoolConfig())
		if err != nil {
			log.WithError(err).Fatal("failed to create database engine")
		}
		engine = eng

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := engine.HealthCheck(ctx); err != nil {
			cancel()
			log.WithError(err).Fatal("database is unreachable")
		}
		if err := migrations.Apply(ctx, engine.DB()); err != nil {
			cancel()
			log.WithError(err).Fatal("failed to apply migrations")
		}
		cancel()

		manager := database.NewManager(log)
		manager.RetryCount = cfg.Database.RetryCount
		manager.RetryBackoff = cfg.Database.RetryBackoff
		manager.Metrics = m
		store = postgres.New(factory, manager)
	}

	svc := users.New(store, log)
	handler := httpapi.NewHandler(svc, log)

	router := mux.NewRouter()
	handler.Register(router)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler(engine)).Methods(http.MethodGet)
	router.Use(middleware.MetricsMiddleware("demo-user-service", m))

	authMw := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, log, []string{"/health", "/metrics"})
	corsMw := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	tracingMw := middleware.NewTracingMiddleware(log)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	rateLimiter.StartCleanup(cleanupCtx, 10*time.Minute)

	var chained http.Handler = router
	chained = middleware.Envelope("/api")(chained)
	chained = rateLimiter.Handler(chained)
	chained = authMw.Handler(chained)
	chained = corsMw.Handler(chained)
	chained = tracingMw.Handler(chained)
	chained = middleware.Recover(log)(chained)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      chained,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stopped")
}

// healthHandler reports liveness. With a database engine attached it also
// pings the pool; a nil engine (memory mode) is always healthy.
func healthHandler(engine *database.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"status":"ok"}`

		if engine != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := engine.HealthCheck(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded"}`
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/dockhand/dockhand-backend/internal/api/middleware"
	"github.com/dockhand/dockhand-backend/internal/api/rest"
	"github.com/dockhand/dockhand-backend/internal/api/websocket"
	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/auth/oidc"
	"github.com/dockhand/dockhand-backend/internal/config"
	"github.com/dockhand/dockhand-backend/internal/docker"
	"github.com/dockhand/dockhand-backend/internal/permissions"
	"github.com/dockhand/dockhand-backend/internal/pkg/logger"
	"github.com/dockhand/dockhand-backend/internal/repository"
	"github.com/dockhand/dockhand-backend/migrations"
)

func main() {
	log.Println("🚀 Dockhand Backend starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("⚠️  Warning: Failed to load config: %v. Using defaults.", err)
		cfg = &config.Config{
			Port:           3000,
			DatabasePath:   "./dockhand.db",
			LogLevel:       "info",
			AllowedOrigins: []string{"*"},
		}
	}
	slog := logger.StdLogger(cfg.LogLevel)

	log.Printf("📋 Configuration loaded: port=%d, db=%s", cfg.Port, cfg.DatabasePath)
	if cfg.AdminEmail == "" {
		log.Println("⚠️  No admin_email configured; no identity has the standing override")
	}

	// Initialize database
	log.Println("💾 Initializing database...")
	repo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer repo.Close()

	if err := runMigrations(repo); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Container runtime
	runtime, err := docker.NewClient(cfg.DockerHost)
	if err != nil {
		log.Fatalf("❌ Failed to initialize container runtime client: %v", err)
	}
	defer runtime.Close()

	oracle := permissions.NewOracle(repo, cfg.AdminEmail)

	// Sign-in is disabled when no OIDC client is configured; access tokens
	// must then be issued out of band.
	var signin rest.SignInVerifier
	if cfg.OIDCClientID != "" {
		provider, err := oidc.NewProvider(ctx, cfg)
		if err != nil {
			log.Fatalf("❌ Failed to initialize OIDC provider: %v", err)
		}
		signin = provider
	} else {
		log.Println("⚠️  No OIDC client configured; /auth/signin is disabled")
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"dockhand-backend","version":"1.0.0"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(cfg, repo, oracle, runtime, signin, slog)
	rest.SetupRoutes(apiRouter, handler)

	// Console sessions authenticate inside the upgraded connection.
	wsHandler := websocket.NewHandler(ctx, cfg, &auth.TokenVerifier{Secret: cfg.AuthJWTSecret}, repo, oracle, websocket.WrapRuntime(runtime), repo, slog)
	router.HandleFunc("/ws/console", wsHandler.ServeConsole).Methods("GET")

	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Recover)
	router.Use(middleware.Auth(cfg, repo))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handlerWithCORS := c.Handler(router)

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlerWithCORS,
		// No WriteTimeout: console sessions and log streams are long-lived.
		ReadHeaderTimeout: timeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("🌐 Server listening on port %d", cfg.Port)
		log.Printf("📡 API available at http://localhost:%d/api/v1", cfg.Port)
		log.Printf("🔌 Console WebSocket at ws://localhost:%d/ws/console", cfg.Port)
		log.Printf("❤️  Health check at http://localhost:%d/health", cfg.Port)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("")
	log.Println("🛑 Shutting down server...")

	// Cancelling the root context tears down every open console session and
	// log stream before the listener drains.
	cancel()

	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}

// runMigrations applies every embedded *.sql file in lexical order.
func runMigrations(repo *repository.SQLiteRepository) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := repo.RunMigrations(string(sqlBytes)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

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

	"connectez-backend/internal/config"
	"connectez-backend/internal/database"
	"connectez-backend/internal/handlers"
	"connectez-backend/internal/middleware"
	"connectez-backend/internal/notifier"
	"connectez-backend/internal/repository"
	"connectez-backend/internal/router"
	"connectez-backend/internal/services"
	"connectez-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting ConnectEz Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	extensionRepo := repository.NewExtensionRepo(pool)
	installationRepo := repository.NewInstallationRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	apiKeyAuth := middleware.NewAPIKeyAuth(cfg.TrackingAPIKey)
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth)
	statsQueue := worker.NewQueue(redisClients.Queue)
	trackingService := services.NewTrackingService(installationRepo, sessionRepo, userRepo, statsQueue)

	// ──── Step 5: Start Lifecycle Sweeper ────
	sweeper := services.NewLifecycleSweeper(installationRepo, cfg.SweepInterval)
	sweeper.Start()
	log.Println("✓ Lifecycle sweeper started")

	// ──── Step 6: Start Stats Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, statsRepo, cfg.StatsWorkers)
	workerPool.Start()
	log.Printf("✓ Stats worker pool started (%d goroutines)", cfg.StatsWorkers)

	// ──── Step 7: Start WebSocket Hub ────
	hub := notifier.NewHub(redisClients.PubSub, jwtAuth, statsRepo)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	trackingHandler := handlers.NewTrackingHandler(trackingService)
	dashboardHandler := handlers.NewDashboardHandler(statsRepo, installationRepo, sessionRepo)
	extensionHandler := handlers.NewExtensionHandler(extensionRepo, statsRepo)
	adminHandler := handlers.NewAdminHandler(statsRepo, installationRepo, sessionRepo)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		apiKeyAuth,
		authHandler,
		trackingHandler,
		dashboardHandler,
		extensionHandler,
		adminHandler,
		hub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ConnectEz Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

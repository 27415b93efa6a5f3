package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/cache"
	"adaptive-backend/internal/config"
	"adaptive-backend/internal/database"
	"adaptive-backend/internal/handlers"
	"adaptive-backend/internal/logger"
	"adaptive-backend/internal/middleware"
	"adaptive-backend/internal/repository"
	"adaptive-backend/internal/router"
	"adaptive-backend/internal/services"
	"adaptive-backend/internal/websocket"
	"adaptive-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting adaptive learning backend", "env", cfg.Env, "store", cfg.StoreDriver)

	policy, err := cfg.Policy()
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	engine := adaptive.NewEngine(policy)

	// ──── Step 2: Open Storage ────
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Storage initialization failed", "driver", cfg.StoreDriver, "error", err)
	}
	defer store.Close()
	log.Info("Storage ready", "driver", cfg.StoreDriver)

	// ──── Step 3: Optional Redis (locks, recommendation cache, live updates) ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	opts := services.PerformanceOptions{Log: log}

	var wsHub *websocket.Hub
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", "error", err)
		}
		defer redisClients.Close()

		opts.Locker = cache.NewRedisLocker(redisClients.Commands, 10*time.Second)
		opts.Cache = cache.NewRedisRecommendationCache(redisClients.Commands,
			time.Duration(cfg.RecommendationCacheTTLSeconds)*time.Second)
		opts.Publisher = cache.NewRedisPublisher(redisClients.Commands)
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth, log)
		log.Info("Redis connected")
	} else {
		wsHub = websocket.NewHub(nil, jwtAuth, log)
		opts.Publisher = wsHub
		opts.Cache = cache.NewMemoryRecommendationCache(time.Duration(cfg.RecommendationCacheTTLSeconds) * time.Second)
		log.Info("Redis not configured, using in-process locks and delivery")
	}

	// ──── Step 4: Services and Progress Push Workers ────
	svc := services.NewPerformanceService(store, engine, opts)

	workerPool := worker.NewPool(func(ctx context.Context, job worker.Job) error {
		return svc.PushProgress(ctx, job.StudentID, job.CourseID)
	}, 4, 256, log)
	workerPool.Start()
	svc.UseNotifier(workerPool)
	log.Info("Worker pool started", "workers", 4)

	attemptLimiter := middleware.NewRateLimiter(cfg.AttemptRateLimitPerMin, time.Minute)
	defer attemptLimiter.Stop()

	// ──── Step 5: Start HTTP Server ────
	r := router.New(router.Deps{
		JWTAuth:            jwtAuth,
		PerformanceHandler: handlers.NewPerformanceHandler(svc),
		CatalogHandler:     handlers.NewCatalogHandler(svc),
		HealthHandler:      handlers.NewHealthHandler(svc),
		AttemptLimiter:     attemptLimiter,
		WebSocket:          wsHub.HandleWebSocket,
		FrontendURL:        cfg.FrontendURL,
		Log:                log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("HTTP shutdown incomplete", "error", err)
		}
		workerPool.Stop()
	}()

	log.Info("Backend ready", "addr", server.Addr, "api", "/api/v1", "ws", "/api/v1/ws")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
	<-done
}

func openStore(cfg *config.Config, log *logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreDriverSQLite:
		db, err := database.NewSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteStore(db), nil
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		migrations := database.EmbeddedMigrations()
		if cfg.MigrationsDir != "" {
			migrations = os.DirFS(cfg.MigrationsDir)
		}
		if err := database.RunMigrations(context.Background(), pool, migrations, log); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

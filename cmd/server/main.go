package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"studycompanion-backend/internal/config"
	"studycompanion-backend/internal/database"
	"studycompanion-backend/internal/handlers"
	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/repository"
	"studycompanion-backend/internal/router"
	"studycompanion-backend/internal/services"
	"studycompanion-backend/internal/websocket"
	"studycompanion-backend/internal/worker"
	"studycompanion-backend/migrations"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting study companion backend", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewStudySessionRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	battleRepo := repository.NewBattleRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Question Generator ────
	var generator services.ContentGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs, log)
		if err != nil {
			log.Fatal("gemini client initialization failed", "error", err)
		}
		defer gemini.Close()
		generator = gemini
		log.Info("gemini question generator ready")
	} else {
		generator = services.NewSampleGenerator(time.Now().UnixNano())
		log.Warn("GEMINI_API_KEY not set, using sample questions")
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := websocket.NewRedisPublisher(redisClients.Queue, log)

	learners := services.NewLearners(services.LearnersConfig{
		Sensors: func(userID string) services.AffectSensor {
			return services.NewSimulatedSensor(cfg.EmotionSampleInterval, cfg.EmotionSimulatorSeed, nil)
		},
		Generator:    generator,
		SessionStore: sessionRepo,
		QuizStore:    quizRepo,
		Publisher:    publisher,
		Location:     cfg.StudyTimezone,
		IdleTTL:      cfg.LearnerIdleTTL,
		Logger:       log,
	})
	defer learners.Close()

	battles := services.NewBattleCoordinator(services.BattleCoordinatorConfig{
		Auth:      middleware.ContextAuth{},
		Generator: generator,
		Store:     battleRepo,
		Publisher: publisher,
		Logger:    log,
	})
	unfinished, err := battleRepo.ListUnfinished(ctx)
	if err != nil {
		log.Fatal("failed to restore battles", "error", err)
	}
	for _, b := range unfinished {
		battles.Load(b)
	}
	log.Info("battles restored", "count", len(unfinished))

	// ──── Step 6: Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		learners,
		services.NewFileExtractService(cfg.MaxUploadBytes),
		jobRepo,
		publisher,
		cfg.WorkerCount,
		log,
	)

	// ──── Step 7: WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)

	// ──── Step 8: HTTP Server ────
	apiLimiter := middleware.NewRateLimiter(120, time.Minute)
	r := router.New(
		jwtAuth,
		handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": pool.Ping,
			"redis":    redisClients.Ping,
		}),
		handlers.NewProfileHandler(learners),
		handlers.NewEmotionHandler(learners),
		handlers.NewStudySessionHandler(learners),
		handlers.NewQuizHandler(learners, jobRepo, workerPool, cfg.StoragePath, cfg.MaxUploadBytes),
		handlers.NewBattleHandler(battles),
		handlers.NewJobHandler(jobRepo),
		handlers.NewVoiceHandler(learners),
		wsHub,
		apiLimiter,
		cfg.FrontendURL,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workerPool.Run(gctx)
	})
	g.Go(func() error {
		apiLimiter.Cleanup(gctx)
		return nil
	})
	g.Go(func() error {
		learners.Cleanup(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		wsHub.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}
	log.Info("bye")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hireloop/assess-api/internal/config"
	"github.com/hireloop/assess-api/internal/database"
	"github.com/hireloop/assess-api/internal/handler"
	"github.com/hireloop/assess-api/internal/middleware"
	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
	"github.com/hireloop/assess-api/internal/router"
	"github.com/hireloop/assess-api/internal/service"
	"github.com/hireloop/assess-api/internal/tasks"
	"github.com/hireloop/assess-api/pkg/ai"
	"github.com/hireloop/assess-api/pkg/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Candidate{},
		&models.JobPosition{},
		&models.Challenge{},
		&models.AssessmentSession{},
		&models.SessionItem{},
		&models.Submission{},
		&models.Evaluation{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional: without them evaluation reads skip the
	// cache and summary events are not published.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	executor, err := sandbox.NewDockerExecutor(sandbox.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create sandbox executor: %v", err)
	}
	defer executor.Close()

	generator, transcriber, err := buildAIAdapters(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create ai adapters: %v", err)
	}

	dispatcher := tasks.NewDispatcher(cfg.DispatcherWorkers, cfg.DispatcherQueueSize, cfg.TaskTimeout, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	sessionRepo := repository.NewSessionRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	summaryService := service.NewSummaryService(sessionRepo, generator, cfg.AIProvider, redisClient, natsConn, cfg.NATSSubject, logger)
	evaluationService := service.NewEvaluationService(sessionRepo, submissionRepo, generator, transcriber, cfg.AIProvider, redisClient, logger)
	sessionService := service.NewSessionService(cfg, sessionRepo, candidateRepo, positionRepo, challengeRepo, dispatcher, summaryService, redisClient, logger)
	submissionService := service.NewSubmissionService(sessionRepo, submissionRepo, executor, dispatcher, evaluationService, logger)
	seedService := service.NewSeedService(candidateRepo, positionRepo, challengeRepo, logger)

	sessionHandler := handler.NewSessionHandler(sessionService, submissionService, validate, logger)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler: sessionHandler,
		SeedHandler:    seedHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, dispatcher)
}

func buildAIAdapters(cfg config.Config, logger zerolog.Logger) (ai.Generator, ai.Transcriber, error) {
	if cfg.AIProvider == "anthropic" {
		generator, err := ai.NewAnthropicGenerator(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			return nil, nil, err
		}
		// Speech-to-text stays on Whisper regardless of the text provider.
		transcriber, err := ai.NewWhisperTranscriber(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, WhisperModel: cfg.WhisperModel})
		if err != nil {
			return nil, nil, err
		}
		return generator, transcriber, nil
	}

	openAICfg := ai.OpenAIConfig{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		WhisperModel: cfg.WhisperModel,
		Logger:       logger,
	}
	generator, err := ai.NewOpenAIGenerator(openAICfg)
	if err != nil {
		return nil, nil, err
	}
	transcriber, err := ai.NewWhisperTranscriber(openAICfg)
	if err != nil {
		return nil, nil, err
	}
	return generator, transcriber, nil
}

func waitForShutdown(app *fiber.App, dispatcher *tasks.Dispatcher) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Shutdown()
	log.Println("server stopped")
}

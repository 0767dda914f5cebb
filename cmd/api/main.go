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
	"github.com/rs/zerolog"

	"github.com/examio/examio-api/internal/config"
	"github.com/examio/examio-api/internal/database"
	"github.com/examio/examio-api/internal/handler"
	"github.com/examio/examio-api/internal/middleware"
	"github.com/examio/examio-api/internal/models"
	"github.com/examio/examio-api/internal/repository"
	"github.com/examio/examio-api/internal/router"
	"github.com/examio/examio-api/internal/service"
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
		&models.User{},
		&models.Class{},
		&models.ClassMember{},
		&models.Exam{},
		&models.ExamAssignment{},
		&models.Question{},
		&models.ExamAttempt{},
		&models.Answer{},
		&models.UserProgress{},
		&models.UserLevel{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	// Attempt events are best-effort; the API runs without a broker.
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, attempt events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	progressService := service.NewProgressService(progressRepo, redisClient, cfg.LeaderboardCacheTTL, validate, logger)
	attemptEvents := service.NewAttemptEventPublisher(natsConn, cfg.EventSubjectBase, logger)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, progressService, attemptEvents, validate, logger)

	attemptHandler := handler.NewAttemptHandler(attemptService, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AttemptHandler:  attemptHandler,
		ProgressHandler: progressHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

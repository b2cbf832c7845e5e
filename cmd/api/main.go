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
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/config"
	"github.com/noah-isme/kompas-go-api/internal/database"
	"github.com/noah-isme/kompas-go-api/internal/handler"
	"github.com/noah-isme/kompas-go-api/internal/middleware"
	"github.com/noah-isme/kompas-go-api/internal/repository"
	"github.com/noah-isme/kompas-go-api/internal/router"
	"github.com/noah-isme/kompas-go-api/internal/service"
	"github.com/noah-isme/kompas-go-api/pkg/ai"
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
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	if cfg.AIProvider != "" && cfg.AIProvider != "openai" {
		log.Fatalf("unsupported ai provider %q", cfg.AIProvider)
	}
	asker, err := ai.NewOpenAIAsker(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.QuestionModel,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create reasoning client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	frameworkRepo := repository.NewFrameworkRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventsService := service.NewEventsService(redisClient, "kompas:assessment", natsConn, logger)
	eventsService.Start(runCtx)

	answerCache := assessment.NewRedisAnswerCache(redisClient, cfg.AnswerCacheTTL, cfg.DefaultConfidence, logger)
	evaluator := assessment.NewEvaluator(asker, answerCache, assessment.EvaluatorConfig{
		Model:       cfg.QuestionModel,
		Attempts:    cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
		CallTimeout: cfg.QuestionTimeout,
	}, logger)
	orchestrator := assessment.NewOrchestrator(evaluator, cfg.AssessmentConcurrency, logger)
	synthesizer := assessment.NewSynthesizer(asker, assessment.SynthesizerConfig{
		Model:       cfg.SynthesisModel,
		Attempts:    cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
		CallTimeout: cfg.QuestionTimeout,
	}, logger)
	pipeline := assessment.NewPipeline(
		service.NewFrameworkLoader(frameworkRepo),
		service.NewSubjectLoader(studentRepo, gradeRepo, forecastRepo),
		orchestrator,
		synthesizer,
		eventsService,
		assessment.PipelineConfig{RunTimeout: cfg.RunTimeout},
		logger,
	)

	studentService := service.NewStudentService(studentRepo, gradeRepo, forecastRepo, validate, logger)
	forecastService := service.NewForecastService(studentRepo, gradeRepo, forecastRepo, logger)
	frameworkService := service.NewFrameworkService(frameworkRepo, cfg.AdminImportToken, cfg.FrameworkVersion, logger)
	assessmentService := service.NewAssessmentService(pipeline, studentRepo, assessmentRepo, validate, cfg.FrameworkVersion, logger)
	advisorService := service.NewAdvisorService(studentRepo, gradeRepo, forecastRepo, assessmentRepo, asker, cfg.AdvisorModel, validate, logger)

	studentHandler := handler.NewStudentHandler(studentService, logger)
	forecastHandler := handler.NewForecastHandler(forecastService, logger)
	frameworkHandler := handler.NewFrameworkHandler(frameworkService, logger)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, eventsService, 30*time.Second, logger)
	advisorHandler := handler.NewAdvisorHandler(advisorService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		StudentHandler:    studentHandler,
		ForecastHandler:   forecastHandler,
		FrameworkHandler:  frameworkHandler,
		AssessmentHandler: assessmentHandler,
		AdvisorHandler:    advisorHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

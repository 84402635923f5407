package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/storysync/configs"
	"github.com/maheshrc27/storysync/internal/api/handlers"
	"github.com/maheshrc27/storysync/internal/api/middleware"
	job "github.com/maheshrc27/storysync/internal/jobs"
	"github.com/maheshrc27/storysync/internal/queue"
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/internal/service"
	"github.com/maheshrc27/storysync/internal/verify"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	runRepo := repository.NewVerificationRunRepository(db)
	historyRepo := repository.NewVerificationHistoryRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	authService := service.NewAuthService(*cfg, operatorRepo)
	instagramService := service.NewInstagramService(*cfg, socialAccountRepo)
	reportService := service.NewReportService(*cfg)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	verifyConfig := verify.Config{
		LaunchDate:      cfg.Verification.LaunchDate,
		StoryTTL:        cfg.Verification.StoryTTL,
		FallbackWindow:  cfg.Verification.FallbackWindow,
		BackoffSchedule: cfg.Verification.BackoffSchedule,
		RateLimitDelay:  cfg.Verification.RateLimitDelay,
		MaxAttempts:     cfg.Verification.MaxAttempts,
		Concurrency:     cfg.Verification.Concurrency,
	}

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	verification := handlers.NewVerificationHandler(runRepo, historyRepo, client)
	api.Get("/verification/runs", verification.ListRuns)
	api.Get("/verification/history", verification.PostHistory)
	api.Post("/verification/run", verification.TriggerRun)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	// cron jobs
	verificationJob := job.NewVerificationJob(client)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, instagramService)

	// queue worker
	queueW := queue.NewQueue(verifyConfig, postRepo, instagramService, runRepo, historyRepo, reportService)

	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.Verification.RunInterval), verificationJob.Trigger)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeVerifyStories, queueW.HandleVerifyStoriesTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}

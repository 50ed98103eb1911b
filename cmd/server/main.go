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
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/api/handlers"
	"github.com/postloom/postloom/internal/api/middleware"
	job "github.com/postloom/postloom/internal/jobs"
	"github.com/postloom/postloom/internal/queue"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
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
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
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

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	recurringRepo := repository.NewRecurringRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	xAccountRepo := repository.NewXAccountRepository(db)
	knowledgeRepo := repository.NewKnowledgeRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	cronRunRepo := repository.NewCronRunRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	xService := service.NewXService()
	credentialService := service.NewCredentialService(*cfg, xAccountRepo, userRepo)
	creditService := service.NewCreditService(creditRepo, usageRepo)
	knowledgeService := service.NewKnowledgeService(knowledgeRepo)
	openAIService := service.NewOpenAIService(*cfg)
	wavespeedService := service.NewWavespeedService(*cfg)
	postService := service.NewPostService(db, postRepo, xAccountRepo, mediaAssetRepo, r2Service)
	recurringService := service.NewRecurringService(recurringRepo, xAccountRepo)
	accountService := service.NewXAccountService(*cfg, xAccountRepo, xService)
	paymentService := service.NewPaymentService(creditService)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	schedulerService := service.NewSchedulerService(postRepo, recurringRepo, mediaAssetRepo,
		credentialService, knowledgeService, openAIService, creditService, xService, r2Service)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	payment := handlers.NewPaymentHandler(paymentService)
	app.Post("/webhooks/payment", payment.Webhook)

	scheduler := handlers.NewSchedulerHandler(*cfg, schedulerService, cronRunRepo)
	app.Post("/cron/scheduler", scheduler.Trigger)
	app.Get("/cron/scheduler", scheduler.Trigger)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/remove", user.RemoveUser)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	recurring := handlers.NewRecurringHandler(recurringService)
	api.Post("/schedules/create", recurring.CreateSchedule)
	api.Get("/schedules", recurring.ListSchedules)
	api.Post("/schedules/update", recurring.UpdateSchedule)
	api.Post("/schedules/toggle", recurring.ToggleSchedule)
	api.Post("/schedules/remove", recurring.RemoveSchedule)

	accounts := handlers.NewAccountsHandler(accountService)
	api.Post("/accounts/register", accounts.RegisterAccount)
	api.Get("/accounts", accounts.ListAccounts)
	api.Post("/accounts/default", accounts.SetDefaultAccount)
	api.Post("/accounts/remove", accounts.RemoveAccount)

	knowledge := handlers.NewKnowledgeHandler(knowledgeService)
	api.Post("/knowledge/create", knowledge.CreateSource)
	api.Get("/knowledge", knowledge.ListSources)
	api.Post("/knowledge/update", knowledge.UpdateSource)
	api.Post("/knowledge/remove", knowledge.RemoveSource)

	credits := handlers.NewCreditsHandler(creditService)
	api.Get("/credits/balance", credits.GetBalance)
	api.Get("/credits/transactions", credits.ListTransactions)
	api.Post("/credits/fulfill", payment.Fulfill)

	generate := handlers.NewGenerateHandler(knowledgeService, openAIService, creditService)
	api.Post("/generate", generate.Generate)

	toolbox := handlers.NewToolboxHandler(wavespeedService, creditService)
	api.Post("/toolbox/media", toolbox.GenerateMedia)
	api.Get("/toolbox/media", toolbox.PollMedia)

	api.Get("/cron/runs", scheduler.ListRuns)

	// cron jobs
	schedulerJob := job.NewSchedulerJob(schedulerService, cronRunRepo)

	// queue
	queueW := queue.NewQueue(schedulerService)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", schedulerJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

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

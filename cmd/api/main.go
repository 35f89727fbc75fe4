package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"renderowl-intel-api/internal/breakdown"
	"renderowl-intel-api/internal/competitors"
	"renderowl-intel-api/internal/config"
	"renderowl-intel-api/internal/handlers"
	"renderowl-intel-api/internal/jobs"
	"renderowl-intel-api/internal/llm"
	"renderowl-intel-api/internal/middleware"
	"renderowl-intel-api/internal/outline"
	"renderowl-intel-api/internal/script"
	"renderowl-intel-api/internal/search"
	"renderowl-intel-api/internal/store"
	"renderowl-intel-api/internal/taxonomy"
	"renderowl-intel-api/internal/thumbnail"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migrateDB(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	promptCache := llm.NewPromptCache(redisClient, cfg.PromptCacheMaxItems, time.Duration(cfg.PromptCacheTTL)*time.Second)
	llmClient := llm.New(cfg.LLMAPIKey, cfg.LLMBaseURL, llm.WithPromptCache(promptCache))

	searchClient := search.New(cfg.SearchAPIKeys, nil)
	extractor := taxonomy.New(llmClient, cfg.LLMModel)
	discoverer := competitors.New(searchClient, llmClient, cfg.LLMModel)
	breakdownAnalyzer := breakdown.New(llmClient, cfg.LLMModel)
	outlinePlanner := outline.New(llmClient, cfg.LLMModel)
	scriptGenerator := script.New(llmClient, cfg.LLMModel)
	thumbAnalyzer := thumbnail.NewAnalyzer(llmClient, cfg.LLMModel)
	thumbGenerator := thumbnail.NewGenerator(cfg.ImageModelAPIKey, cfg.ImageModelBaseURL)
	thumbPipeline := thumbnail.NewPipeline(thumbAnalyzer, thumbGenerator)

	projectRepo := store.NewProjectRepository(db)
	jobRepo := store.NewJobRepository(db)
	secretsRepo := store.NewUserSecretRepository(db)

	queue := asynq.NewClient(redisOpt)
	defer queue.Close()

	orchestrator := jobs.New(
		projectRepo,
		jobRepo,
		secretsRepo,
		searchClient,
		extractor,
		discoverer,
		breakdownAnalyzer,
		outlinePlanner,
		scriptGenerator,
		thumbPipeline,
		queue,
		cfg.MaxProjectsPerUser,
	)

	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"intel": 1,
		},
	})
	go func() {
		if err := worker.Run(orchestrator.Mux()); err != nil {
			log.Fatalf("asynq worker stopped: %v", err)
		}
	}()
	defer worker.Shutdown()

	// Sweeps the process-wide LLM prompt cache's expired entries hourly
	// (spec §5); grounded on the teacher's scheduler.ProcessJobs ticker
	// loop, generalized to a standard cron expression.
	sweeper, err := jobs.NewSweeper(promptCache, "@every 1h")
	if err != nil {
		log.Fatalf("Failed to start prompt cache sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	healthHandler := handlers.NewHealthHandler(db, redisClient)
	projectHandler := handlers.NewProjectHandler(orchestrator)
	jobHandler := handlers.NewJobHandler(orchestrator, jobRepo)
	secretsHandler := handlers.NewSecretsHandler(secretsRepo)
	scriptHandler := handlers.NewScriptHandler(orchestrator)

	r := gin.Default()
	r.Use(middleware.CORS(cfg))

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/health/live", healthHandler.LivenessCheck)

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg), middleware.ErrorHandler())
	{
		projects := api.Group("/projects")
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:id", projectHandler.Get)
			projects.DELETE("/:id", projectHandler.Delete)
			projects.GET("/:id/potential_competitors", projectHandler.PotentialCompetitors)
			projects.POST("/:id/discover", projectHandler.Discover)
			projects.POST("/:id/finalize", projectHandler.Finalize)
			projects.POST("/:id/analyze", projectHandler.Analyze)
			projects.POST("/:id/prepare_resources", projectHandler.PrepareResources)
			projects.POST("/:id/plots", projectHandler.GeneratePlot)
			projects.POST("/:id/scripts", scriptHandler.Create)
			projects.POST("/:id/thumbnails", projectHandler.GenerateThumbnails)
		}

		api.GET("/jobs/:id", jobHandler.Get)
		api.POST("/jobs/:id/cancel", jobHandler.Cancel)

		secrets := api.Group("/secrets")
		{
			secrets.POST("", secretsHandler.Set)
			secrets.DELETE("/:service", secretsHandler.Delete)
			secrets.POST("/:service/test", secretsHandler.Test)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&store.ProjectModel{},
		&store.JobModel{},
		&store.UserSecretModel{},
	)
}

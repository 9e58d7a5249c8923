package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activity-logs/internal/api"
	"activity-logs/internal/config"
	"activity-logs/internal/database"
	"activity-logs/internal/services"
	"activity-logs/internal/workerpool"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	// Initialize SQL database (optional - task persistence and the sql artifact store)
	var db *gorm.DB
	if cfg.Database.URL != "" {
		db, err = database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close(db)
	} else {
		log.Printf("DATABASE_URL not set, tasks are kept in memory only")
	}

	store, closeStore, err := newArtifactStore(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}
	defer closeStore()

	generator, closeGenerator, err := newGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize log generator: %v", err)
	}
	defer closeGenerator()

	// Initialize services
	var repo services.TaskRepository
	if db != nil {
		repo = database.NewSQLTaskRepository(db)
	}
	taskService := services.NewTaskService(repo)
	restored, err := taskService.Restore(context.Background())
	if err != nil {
		log.Fatalf("Failed to restore tasks: %v", err)
	}
	if restored > 0 {
		log.Printf("Restored %d tasks from the database", restored)
	}

	pool := workerpool.New(cfg.Worker.Count, cfg.Worker.QueueSize)
	logService := services.NewLogService(taskService, store, generator, pool, cfg.Worker.GenerationTimeout)
	logService.SetDrainOnShutdown(cfg.Worker.DrainOnShutdown)
	log.Printf("Worker pool started: workers=%d, queue=%d, drain on shutdown=%t",
		pool.Workers(), cfg.Worker.QueueSize, cfg.Worker.DrainOnShutdown)

	retention, err := services.NewRetentionService(taskService, store,
		cfg.Retention.TaskRetention, cfg.Retention.ArtifactRetention, cfg.Retention.Schedule)
	if err != nil {
		log.Fatalf("Failed to configure retention: %v", err)
	}
	if err := retention.Start(); err != nil {
		log.Fatalf("Failed to start retention: %v", err)
	}

	// Setup routes
	router := api.SetupRoutes(api.NewHandlers(logService))

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WARNING: HTTP server shutdown: %v", err)
	}
	retention.Stop()
	if err := logService.Shutdown(ctx); err != nil {
		log.Printf("WARNING: Log service shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func newArtifactStore(cfg *config.Config, db *gorm.DB) (services.ArtifactStore, func(), error) {
	noop := func() {}

	switch cfg.Storage.Type {
	case "memory":
		log.Printf("Using in-memory artifact store")
		return services.NewMemoryArtifactStore(), noop, nil
	case "file":
		store, err := services.NewFileArtifactStore(cfg.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("Using file artifact store at %s", cfg.Storage.Dir)
		return store, noop, nil
	case "s3":
		store, err := services.NewS3ArtifactStore(&cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("Using S3 artifact store (bucket: %s, prefix: %s)", cfg.S3.Bucket, cfg.S3.Prefix)
		return store, noop, nil
	case "mongo":
		store, err := database.NewMongoArtifactStore(cfg.MongoDB)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(ctx); err != nil {
				log.Printf("WARNING: Failed to disconnect from MongoDB: %v", err)
			}
		}, nil
	case "sql":
		log.Printf("Using SQL artifact store")
		return database.NewSQLArtifactStore(db), noop, nil
	default:
		return nil, noop, errors.New("unsupported artifact store: " + cfg.Storage.Type)
	}
}

func newGenerator(cfg *config.Config) (services.Generator, func(), error) {
	switch cfg.Generator.Type {
	case "influx":
		gen, err := services.NewInfluxGenerator(&cfg.InfluxDB)
		if err != nil {
			return nil, func() {}, err
		}
		return gen, gen.Close, nil
	default:
		log.Printf("Generating logs from archives in %s", cfg.Generator.ArchiveDir)
		return services.NewArchiveGenerator(cfg.Generator.ArchiveDir, cfg.Generator.ArchivePattern, cfg.Generator.Delay), func() {}, nil
	}
}

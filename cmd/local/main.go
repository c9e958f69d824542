package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pl-ner-backend/cmd"
	"pl-ner-backend/internal/api"
	"pl-ner-backend/internal/config"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "pl-ner.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	return db
}

// createQueue requeues jobs that were pending or interrupted when the
// process last stopped.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var jobs []database.Job
	if err := db.Where("status IN ?", []string{database.JobQueued, database.JobRunning}).Find(&jobs).Error; err != nil {
		log.Fatalf("Failed to fetch jobs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	if len(jobs) > 0 {
		slog.Info("requeueing unfinished jobs", "count", len(jobs))
	}

	// The queue is bounded and is only drained once the worker starts.
	go func() {
		for _, job := range jobs {
			if err := queue.PublishExtractJob(context.Background(), messaging.ExtractJobPayload{JobId: job.Id}); err != nil {
				slog.Error("failed to requeue extract job", "job_id", job.Id, "error", err)
			}
		}
	}()

	return queue
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.Parse[config.LocalConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "model_type", cfg.Model.Type, "model_dir", cfg.Model.Dir)

	db := createDatabase(cfg.Root)

	providers := map[string]storage.Provider{
		storage.LocalStorage: storage.NewLocalProvider(filepath.Join(cfg.Root, "storage")),
	}

	engine := cmd.LoadEngine(cfg.Engine)
	modelType, model := cmd.LoadModel(cfg.Model)
	defer func() {
		if err := core.DestroyOnnxRuntime(); err != nil {
			log.Printf("error destroying onnx env: %v", err)
		}
	}()
	defer model.Release()

	analyzer := core.NewAnalyzer(engine, model)

	queue := createQueue(db)

	parser := storage.NewDefaultParser(storage.WithMaxChunkRunes(cfg.MaxChunkRunes))
	worker := core.NewTaskProcessor(db, providers, parser, analyzer, queue, cfg.Workers)

	r := cmd.NewRouter(true)

	apiHandler := api.NewBackendService(db, queue, providers, analyzer, string(modelType), cfg.StoreAnalyses)
	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	slog.Info("starting worker")
	workerDone := make(chan struct{})
	go func() {
		worker.Start()
		close(workerDone)
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("shutting down worker")
	worker.Stop()
	<-workerDone

	slog.Info("server stopped")
}

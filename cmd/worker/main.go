package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pl-ner-backend/cmd"
	"pl-ner-backend/internal/config"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Parse[config.WorkerConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	providers := cmd.CreateProviders(context.Background(), cfg.Storage)

	engine := cmd.LoadEngine(cfg.Engine)
	_, model := cmd.LoadModel(cfg.Model)
	defer core.DestroyOnnxRuntime() // nolint:errcheck
	defer model.Release()

	parser := storage.NewDefaultParser(storage.WithMaxChunkRunes(cfg.MaxChunkRunes))

	worker := core.NewTaskProcessor(db, providers, parser, core.NewAnalyzer(engine, model), receiver, cfg.Workers)

	done := make(chan struct{})
	go func() {
		worker.Start()
		close(done)
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, waiting for the current task to finish...")

	worker.Stop()
	<-done

	log.Println("Worker process stopped.")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pl-ner-backend/cmd"
	"pl-ner-backend/internal/api"
	"pl-ner-backend/internal/config"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/messaging"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.Parse[config.APIConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	providers := cmd.CreateProviders(context.Background(), cfg.Storage)

	engine := cmd.LoadEngine(cfg.Engine)
	modelType, model := cmd.LoadModel(cfg.Model)
	defer model.Release()
	defer core.DestroyOnnxRuntime() // nolint:errcheck

	r := cmd.NewRouter(false)

	apiHandler := api.NewBackendService(db, publisher, providers, core.NewAnalyzer(engine, model), string(modelType), cfg.StoreAnalyses)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}

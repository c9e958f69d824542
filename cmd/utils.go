package cmd

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"pl-ner-backend/internal/config"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/extract"
	"pl-ner-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// LoadEngine builds the extraction engine. A malformed dictionary aborts
// start-up.
func LoadEngine(cfg config.EngineConfig) *extract.Engine {
	dicts, err := extract.LoadDictionaries(cfg.NumeralsPath, cfg.TimeWordsPath)
	if err != nil {
		log.Fatalf("error loading dictionaries: %v", err)
	}

	engine, err := extract.NewEngine(dicts)
	if err != nil {
		log.Fatalf("error creating extraction engine: %v", err)
	}

	return engine
}

func LoadModel(cfg config.ModelConfig) (core.ModelType, core.Model) {
	modelType, err := core.ParseModelType(cfg.Type)
	if err != nil {
		log.Fatalf("invalid model config: %v", err)
	}

	if modelType == core.OnnxHerbert {
		if err := core.InitOnnxRuntime(cfg.OnnxRuntimeDylib); err != nil {
			log.Fatalf("could not init ONNX Runtime: %v", err)
		}
	}

	model, err := core.NewModelLoaders(cfg.LoaderConfig())[modelType](cfg.Dir)
	if err != nil {
		log.Fatalf("could not load NER model: %v", err)
	}

	slog.Info("loaded ner model", "model_type", modelType, "model_dir", cfg.Dir)

	return modelType, model
}

func CreateProviders(ctx context.Context, cfg config.StorageConfig) map[string]storage.Provider {
	providers := make(map[string]storage.Provider)

	s3Provider, err := storage.NewS3Provider(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("failed to create S3 provider: %v", err)
	}
	providers[storage.S3Storage] = s3Provider

	if cfg.LocalDir != "" {
		providers[storage.LocalStorage] = storage.NewLocalProvider(cfg.LocalDir)
	}

	return providers
}

func NewRouter(allowCORS bool) *chi.Mux {
	r := chi.NewRouter()

	if allowCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	return r
}

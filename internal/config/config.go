package config

import (
	"fmt"

	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/storage"

	"github.com/caarlos0/env/v11"
)

// EngineConfig points at dictionary overrides; empty paths use the embedded
// tables.
type EngineConfig struct {
	NumeralsPath  string `env:"NUMERALS_PATH"`
	TimeWordsPath string `env:"TIME_WORDS_PATH"`
}

type ModelConfig struct {
	Type             string  `env:"NER_MODEL_TYPE" envDefault:"none"`
	Dir              string  `env:"NER_MODEL_DIR"`
	OnnxRuntimeDylib string  `env:"ONNX_RUNTIME_DYLIB"`
	RemoteURL        string  `env:"NER_REMOTE_URL"`
	RemoteToken      string  `env:"NER_REMOTE_TOKEN"`
	RemoteRPS        float64 `env:"NER_REMOTE_RPS" envDefault:"5"`
	PluginCmd        string  `env:"NER_PLUGIN_CMD"`
}

func (c ModelConfig) LoaderConfig() core.ModelLoaderConfig {
	return core.ModelLoaderConfig{
		RemoteURL:   c.RemoteURL,
		RemoteToken: c.RemoteToken,
		RemoteRPS:   c.RemoteRPS,
		PluginCmd:   c.PluginCmd,
	}
}

func (c ModelConfig) Validate() error {
	modelType, err := core.ParseModelType(c.Type)
	if err != nil {
		return err
	}

	switch modelType {
	case core.OnnxHerbert:
		if c.Dir == "" || c.OnnxRuntimeDylib == "" {
			return fmt.Errorf("NER_MODEL_DIR and ONNX_RUNTIME_DYLIB must be set for model type '%s'", modelType)
		}
	case core.PluginModel:
		if c.Dir == "" || c.PluginCmd == "" {
			return fmt.Errorf("NER_MODEL_DIR and NER_PLUGIN_CMD must be set for model type '%s'", modelType)
		}
	case core.RemoteModel:
		if c.RemoteURL == "" {
			return fmt.Errorf("NER_REMOTE_URL must be set for model type '%s'", modelType)
		}
	}
	return nil
}

type StorageConfig struct {
	S3       storage.S3ProviderConfig
	LocalDir string `env:"LOCAL_STORAGE_DIR"`
}

type APIConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL   string `env:"RABBITMQ_URL,notEmpty,required"`
	Port          int    `env:"PORT" envDefault:"8001"`
	StoreAnalyses bool   `env:"STORE_ANALYSES" envDefault:"false"`

	Storage StorageConfig
	Engine  EngineConfig
	Model   ModelConfig
}

type WorkerConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL   string `env:"RABBITMQ_URL,notEmpty,required"`
	Workers       int    `env:"WORKERS" envDefault:"4"`
	MaxChunkRunes int    `env:"MAX_CHUNK_RUNES" envDefault:"65536"`

	Storage StorageConfig
	Engine  EngineConfig
	Model   ModelConfig
}

// LocalConfig runs the API and the processor in one process on top of sqlite
// and a directory tree.
type LocalConfig struct {
	Root          string `env:"ROOT" envDefault:"./pl-ner"`
	Port          int    `env:"PORT" envDefault:"3001"`
	Workers       int    `env:"WORKERS" envDefault:"2"`
	MaxChunkRunes int    `env:"MAX_CHUNK_RUNES" envDefault:"65536"`
	StoreAnalyses bool   `env:"STORE_ANALYSES" envDefault:"true"`

	Engine EngineConfig
	Model  ModelConfig
}

type CLIConfig struct {
	Engine EngineConfig
	Model  ModelConfig
}

type Validator interface {
	Validate() error
}

func (c APIConfig) Validate() error { return c.Model.Validate() }
func (c WorkerConfig) Validate() error { return c.Model.Validate() }
func (c LocalConfig) Validate() error { return c.Model.Validate() }
func (c CLIConfig) Validate() error { return c.Model.Validate() }

// Parse reads T from the environment and validates it.
func Parse[T Validator]() (T, error) {
	cfg, err := env.ParseAs[T]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

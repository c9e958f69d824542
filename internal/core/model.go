package core

import (
	"fmt"
	"pl-ner-backend/internal/core/types"
	"strings"
)

// ModelType selects the NER backend that runs alongside the rule based
// extractors.
type ModelType string

const (
	OnnxHerbert ModelType = "onnx"
	RemoteModel ModelType = "remote"
	PluginModel ModelType = "plugin"
	NoModel     ModelType = "none"
)

type Model interface {
	Predict(text string) ([]types.Entity, error)

	Release()
}

type ModelLoader func(string) (Model, error)

type ModelLoaderConfig struct {
	RemoteURL   string
	RemoteToken string
	RemoteRPS   float64

	PluginCmd string
}

func ParseModelType(s string) (ModelType, error) {
	switch t := ModelType(strings.ToLower(strings.TrimSpace(s))); t {
	case OnnxHerbert, RemoteModel, PluginModel, NoModel:
		return t, nil
	case "":
		return NoModel, nil
	default:
		return "", fmt.Errorf("invalid model type '%s'", s)
	}
}

func NewModelLoaders(cfg ModelLoaderConfig) map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		OnnxHerbert: func(modelDir string) (Model, error) {
			return LoadOnnxModel(modelDir)
		},
		RemoteModel: func(_ string) (Model, error) {
			return NewRemoteModel(cfg.RemoteURL, cfg.RemoteToken, cfg.RemoteRPS)
		},
		PluginModel: func(modelDir string) (Model, error) {
			return LoadPluginModel(cfg.PluginCmd, modelDir)
		},
		NoModel: func(_ string) (Model, error) {
			return nullModel{}, nil
		},
	}
}

type nullModel struct{}

func (nullModel) Predict(string) ([]types.Entity, error) {
	return nil, nil
}

func (nullModel) Release() {}

func FilterByScore(entities []types.Entity, threshold float64) []types.Entity {
	filtered := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Score >= threshold {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

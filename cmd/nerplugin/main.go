package main

import (
	"flag"
	"log"
	"os"

	"pl-ner-backend/internal/core"
	"pl-ner-backend/plugin/shared"

	"github.com/hashicorp/go-plugin"
)

type onnxPlugin struct {
	model core.Model
}

func (p *onnxPlugin) Predict(sentence string) ([]shared.Entity, error) {
	entities, err := p.model.Predict(sentence)
	if err != nil {
		return nil, err
	}
	return core.ToPluginEntities(entities), nil
}

func main() {
	modelDir := flag.String("model-dir", "", "directory containing model.onnx, tokenizer.json and config.json")
	flag.Parse()

	// stdout is reserved for the plugin handshake
	log.SetOutput(os.Stderr)

	if *modelDir == "" {
		log.Fatalf("--model-dir must be specified")
	}

	if err := core.InitOnnxRuntime(os.Getenv("ONNX_RUNTIME_DYLIB")); err != nil {
		log.Fatalf("could not init ONNX Runtime: %v", err)
	}
	defer core.DestroyOnnxRuntime() // nolint:errcheck

	model, err := core.LoadOnnxModel(*modelDir)
	if err != nil {
		log.Fatalf("could not load model: %v", err)
	}
	defer model.Release()

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.Handshake,
		Plugins: map[string]plugin.Plugin{
			shared.ModelPluginName: &shared.ModelPlugin{Impl: &onnxPlugin{model: model}},
		},
	})
}

package core

import (
	"fmt"
	"os/exec"
	"pl-ner-backend/internal/core/types"
	"pl-ner-backend/plugin/shared"
	"sync"

	"github.com/hashicorp/go-plugin"
)

// PluginModel runs NER inference in a separate process over net/rpc.
type PluginModel struct {
	mu     sync.Mutex
	client *plugin.Client
	model  shared.Model
}

func LoadPluginModel(pluginCmd, modelDir string) (*PluginModel, error) {
	if pluginCmd == "" {
		return nil, fmt.Errorf("plugin command must be specified")
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.Handshake,
		Plugins:          shared.PluginMap,
		Cmd:              exec.Command(pluginCmd, "--model-dir", modelDir),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.ModelPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.ModelPluginName, err)
	}

	model, ok := raw.(shared.Model)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Model (actual type: %T)", shared.ModelPluginName, raw)
	}

	return &PluginModel{client: client, model: model}, nil
}

func (m *PluginModel) Predict(text string) ([]types.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil, fmt.Errorf("plugin model has been released")
	}

	result, err := m.model.Predict(text)
	if err != nil {
		return nil, err
	}

	return FromPluginEntities(result), nil
}

func (m *PluginModel) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return
	}

	m.client.Kill()
	m.client = nil
	m.model = nil
}

func FromPluginEntities(ents []shared.Entity) []types.Entity {
	out := make([]types.Entity, len(ents))
	for i, e := range ents {
		out[i] = types.Entity{Label: e.Label, Text: e.Text, Start: e.Start, End: e.End, Score: e.Score}
	}
	return out
}

func ToPluginEntities(ents []types.Entity) []shared.Entity {
	out := make([]shared.Entity, len(ents))
	for i, e := range ents {
		out[i] = shared.Entity{Label: e.Label, Text: e.Text, Start: e.Start, End: e.End, Score: e.Score}
	}
	return out
}

package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PL_NER_PLUGIN",
	MagicCookieValue: "herbert",
}

const ModelPluginName = "model"

var PluginMap = map[string]plugin.Plugin{
	ModelPluginName: &ModelPlugin{},
}

type Entity struct {
	Label string
	Text  string
	Start int
	End   int
	Score float64
}

// Model is the interface served by NER plugins. Offsets of the returned
// entities are rune offsets into the sentence.
type Model interface {
	Predict(sentence string) ([]Entity, error)
}

type ModelPlugin struct {
	Impl Model
}

func (p *ModelPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *ModelPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

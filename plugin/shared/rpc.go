package shared

import (
	"net/rpc"
)

type RPCClient struct{ client *rpc.Client }

func (m *RPCClient) Predict(sentence string) ([]Entity, error) {
	var resp []Entity
	err := m.client.Call("Plugin.Predict", sentence, &resp)
	return resp, err
}

type RPCServer struct {
	Impl Model
}

func (m *RPCServer) Predict(sentence string, resp *[]Entity) error {
	v, err := m.Impl.Predict(sentence)
	*resp = v
	return err
}

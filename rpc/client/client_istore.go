package client

import (
	"errors"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
)

// NewRPCStore creates a store.IStore that forwards every operation to a server
// The function takes a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	c, err := NewClient(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcStore{client: c}, nil
}

type rpcStore struct {
	client *Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Get(table, key string) (common.Value, bool, error) {
	value, err := i.client.Get(table, key)
	if errors.Is(err, common.ErrNotFound) {
		return common.Value{}, false, nil
	}
	if err != nil {
		return common.Value{}, false, err
	}
	return value, true, nil
}

func (i *rpcStore) GetAll(table string) ([]common.Kvpair, error) {
	return i.client.GetAll(table)
}

func (i *rpcStore) Set(table, key string, value common.Value) (common.Value, bool, error) {
	old, err := i.client.Set(table, key, value)
	if err != nil {
		return common.Value{}, false, err
	}
	return old, !old.IsNone(), nil
}

func (i *rpcStore) Delete(table, key string) (common.Value, bool, error) {
	old, err := i.client.Del(table, key)
	if err != nil {
		return common.Value{}, false, err
	}
	return old, !old.IsNone(), nil
}

func (i *rpcStore) Has(table, key string) (bool, error) {
	return i.client.Exists(table, key)
}

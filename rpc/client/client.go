package client

import (
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
)

// Client is the convenience API of mKV. Every call uses its own logical stream,
// so a Client can be used from many goroutines at once.
type Client struct {
	rpcClientAdapter
}

// NewClient connects the transport and creates a new client
// The function takes a config, a transport and a serializer as parameters
func NewClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Client, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &Client{
		rpcClientAdapter{
			config:    config,
			transport: transport,
			codec:     frame.NewCodec(serializer, frame.OptionsFromConf(config.Frame)),
		},
	}, nil
}

// Close closes the transport and all its connections
func (c *Client) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Key value operations
// --------------------------------------------------------------------------

// Get returns the value of a key. It returns an error matching common.ErrNotFound if the key does not exist.
func (c *Client) Get(table, key string) (common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHgetRequest(table, key))
	if err != nil {
		return common.Value{}, err
	}
	if err := expectValues(resp, 1); err != nil {
		return common.Value{}, err
	}
	return resp.Values[0], nil
}

// GetAll returns all pairs of a table sorted by key
func (c *Client) GetAll(table string) ([]common.Kvpair, error) {
	resp, err := c.invokeRPCRequest(common.NewHgetallRequest(table))
	if err != nil {
		return nil, err
	}
	return resp.Pairs, nil
}

// MGet returns the values of the keys, missing keys yield an empty value
func (c *Client) MGet(table string, keys ...string) ([]common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHmgetRequest(table, keys))
	if err != nil {
		return nil, err
	}
	if err := expectValues(resp, len(keys)); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Set stores the value and returns the previous one (empty if there was none)
func (c *Client) Set(table, key string, value common.Value) (common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHsetRequest(table, key, value))
	if err != nil {
		return common.Value{}, err
	}
	if err := expectValues(resp, 1); err != nil {
		return common.Value{}, err
	}
	return resp.Values[0], nil
}

// MSet stores all pairs and returns the previous values in order
func (c *Client) MSet(table string, pairs ...common.Kvpair) ([]common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHmsetRequest(table, pairs))
	if err != nil {
		return nil, err
	}
	if err := expectValues(resp, len(pairs)); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Del deletes a key and returns the deleted value (empty if there was none)
func (c *Client) Del(table, key string) (common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHdelRequest(table, key))
	if err != nil {
		return common.Value{}, err
	}
	if err := expectValues(resp, 1); err != nil {
		return common.Value{}, err
	}
	return resp.Values[0], nil
}

// MDel deletes all keys and returns the deleted values in order
func (c *Client) MDel(table string, keys ...string) ([]common.Value, error) {
	resp, err := c.invokeRPCRequest(common.NewHmdelRequest(table, keys))
	if err != nil {
		return nil, err
	}
	if err := expectValues(resp, len(keys)); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Exists reports whether the key exists
func (c *Client) Exists(table, key string) (bool, error) {
	resp, err := c.invokeRPCRequest(common.NewHexistRequest(table, key))
	if err != nil {
		return false, err
	}
	if err := expectValues(resp, 1); err != nil {
		return false, err
	}
	return resp.Values[0].Bool, nil
}

// MExists reports for every key whether it exists
func (c *Client) MExists(table string, keys ...string) ([]bool, error) {
	resp, err := c.invokeRPCRequest(common.NewHmexistRequest(table, keys))
	if err != nil {
		return nil, err
	}
	if err := expectValues(resp, len(keys)); err != nil {
		return nil, err
	}
	exists := make([]bool, len(resp.Values))
	for i, v := range resp.Values {
		exists[i] = v.Bool
	}
	return exists, nil
}

package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles one logical stream
// This function is called by a server transport layer for every stream a client opens
// ctx is canceled when the connection carrying the stream closes
type ServerHandleFunc func(ctx context.Context, stream net.Conn) error

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called in its own goroutine for every logical stream
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving connections
	// It returns nil after Close was called
	Listen(config common.ServerConfig) error
	// Addr returns the address the transport listens on (nil before Listen)
	Addr() net.Addr
	// Close stops listening and closes all connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// OpenStream opens a new logical stream to the server
	OpenStream(ctx context.Context) (net.Conn, error)
	// Close closes the transport connection
	Close() error
}

// Package transport defines the interfaces and abstractions for the network
// layer of mKV. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Exposing logical streams (net.Conn) of multiplexed connections
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and opens logical streams.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     accepts connections and hands every logical stream to the registered handler.
//
//   - ServerHandleFunc: Function type for stream handling callbacks.
package transport

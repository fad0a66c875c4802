// Package base provides a foundation for the transport layers of mKV,
// implementing the core functionality independent of the specific network
// protocol (TCP, Unix sockets, etc.). It serves as a base layer that can be
// extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Multiplexing every connection into independent logical streams (see mux)
//   - Optional TLS on top of the raw connection
//   - Robust error handling with retries and reconnection logic
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin selection. Supports multiple connections per endpoint.
//     A connection whose session closed is re-established on the next use, and
//     opening a stream is retried with exponential backoff.
//
//   - serverTransport: Core server implementation that accepts connections,
//     tags each with a uuid for logging and runs the registered handler for
//     every logical stream a client opens.
//
// Performance Considerations:
//
//   - Connection Pooling: Multiple connections per endpoint improve throughput
//     for high-load scenarios where a single connection saturates. For small
//     messages a single connection per endpoint may perform better, since all
//     logical streams share its buffers anyway.
//
//   - Stream per request: Opening a logical stream costs one small control
//     frame and no extra round trip, so clients open one stream per request.
//
// Thread Safety:
//
//	All public methods are thread-safe. The server creates a dedicated
//	goroutine for each connection and each logical stream.
package base

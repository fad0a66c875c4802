// Package common provides core data structures and utilities shared across
// the mKV protocol layer. It defines fundamental types, configuration
// structures, the error taxonomy and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for requests and responses
//   - Configuration structures for client and server components
//   - Error kinds and their mapping to response status codes
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to the operation type. Includes factory methods for
//     every request and the common response shapes.
//
//   - MessageType: Closed enumeration of all supported operations. IsUnary and
//     IsStreaming implement the classification used by the dispatcher.
//
//   - Value / Kvpair: Tagged union of storable values and key-value pairs.
//
//   - Error / ErrorKind: Error taxonomy (FrameTooLarge, MalformedFrame,
//     CompressionError, SerializationError, ConnectionClosed,
//     SubscriptionNotFound, InvalidCommand, ...). Sentinels such as
//     ErrFrameTooLarge match any error of the same kind with errors.Is.
//
//   - ServerConfig / ClientConfig: Configuration for the server and client,
//     including transport, TLS and multiplexer settings.
package common

// Package rpc provides the communication layer of mKV. Requests and responses
// travel as length prefixed frames over logical streams that are multiplexed on
// a single connection.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, values, the error taxonomy, configuration
//     structures and logging.
//
//   - serializer: Message serialization with multiple format options (Binary,
//     JSON, GOB, Proto).
//
//   - frame: The frame codec (u32 header with compression flag, gzip above a
//     size limit) and the framed stream on top of a connection.
//
//   - transport: Connection handling with pluggable implementations (TCP, Unix
//     sockets), optional TLS and the stream multiplexer (transport/mux).
//
//   - pubsub: The topic broadcaster fanning published values out to subscriptions.
//
//   - client: The RPC client for key value and publish/subscribe operations, also
//     usable as store.IStore.
//
//   - server: Request dispatching, per stream processing and the server wiring.
package rpc

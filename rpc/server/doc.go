// Package server implements the RPC server of mKV.
//
// The transport calls the server once per logical stream. Every stream is
// wrapped into a ServerStream which reads framed requests, hands them to the
// Service and writes the responses back in order.
//
// Key Components:
//
//   - Service: Classifies requests. Point storage operations (hget, hgetall,
//     hmget, hset, hmset, hdel, hmdel, hexist, hmexist) are executed by the
//     IStore adapter and yield exactly one response. publish, subscribe and
//     unsubscribe are executed by the pub/sub adapter against a
//     pubsub.Broadcaster and yield a response sequence. Hooks can observe
//     requests and responses (OnReceived, OnExecuted, OnBeforeSend, OnAfterSend).
//
//   - DispatchUnary / DispatchStream: The two dispatch paths. Storage errors
//     become error responses. Passing a unary request to DispatchStream panics.
//
//   - ServerStream: Per stream processing loop. A subscription occupies its
//     stream, the stream is closed once the subscription is removed.
//
//   - RPCServer: Wires the in-memory store, the broadcaster, the frame codec and
//     the transport, and optionally serves metrics on /metrics.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Transport.Endpoint = "0.0.0.0:9527"
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	s.Service().OnReceived(func(req *common.Message) { log.Println(req) })
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Streams are processed concurrently, each in its own goroutine.
//	Hooks must be registered before Serve is called.
package server

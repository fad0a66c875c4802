// Package client implements the RPC client of mKV.
//
// Every call opens its own logical stream on one of the multiplexed transport
// connections, sends one framed request and reads the response. Many calls
// therefore share a connection without blocking each other.
//
// Key Components:
//
//   - NewClient: Factory function that connects the transport and returns a
//     Client with the key value operations (Get, GetAll, MGet, Set, MSet, Del,
//     MDel, Exists, MExists) and the publish/subscribe operations (Publish,
//     Subscribe, Unsubscribe).
//
//   - NewRPCStore: Factory function that creates a client implementing the
//     store.IStore interface, forwarding all operations to the server.
//
//   - ClientStream: A single logical stream. ExecuteUnary reads exactly one
//     response, ExecuteStreaming reads the subscription id and returns a
//     StreamResult yielding the published values until io.EOF.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Transport.Endpoints = []string{"localhost:9527"}
//
//	c, err := client.NewClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Set("users", "alice", common.StringValue("admin"))
//	v, _ := c.Get("users", "alice")
//
//	sub, _ := c.Subscribe("lobby")
//	go c.Publish("lobby", common.StringValue("hello"))
//	msg, _ := sub.Next() // msg.Values[0] == "hello"
//
// Thread Safety:
//
//	A Client is safe for concurrent use. A StreamResult must be consumed by a
//	single goroutine.
package client

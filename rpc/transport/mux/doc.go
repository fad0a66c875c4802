// Package mux multiplexes one connection into many independent logical
// streams using yamux.
//
// A client controller only opens streams (OpenStream). A server controller
// accepts streams in Serve and hands every inbound stream to a Handler in
// its own goroutine. A failing handler ends its stream only, while closing
// the connection ends all streams and cancels the handler context.
//
// Flow control is the one provided by yamux: the receive window of a stream
// is released as soon as the consumer reads from it. The window size is
// configured with common.MuxConf.MaxStreamWindowSize (minimum 256 KB).
package mux

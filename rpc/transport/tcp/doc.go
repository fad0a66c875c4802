// Package tcp implements a TCP socket based transport for the mKV protocol.
// It provides concrete implementations of the base package's connector
// interfaces for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting
// multiplexing, optional TLS, round robin connection selection and reconnects.
// See the base package documentation for details.
//
// Key Components:
//
//   - clientConnector: TCP specific implementation of base.IClientConnector
//
//   - serverConnector: TCP specific implementation of base.IServerConnector
//
// Both sides apply the TCPConf (no delay, keep alive, linger) and SocketConf
// (buffer sizes) of their configuration to every connection.
package tcp

// Package unix implements a transport for the mKV protocol using Unix domain
// sockets. It provides fast communication for processes running on the same
// machine.
//
// This package extends the base transport layer with Unix socket specific
// connectors while inheriting multiplexing, reconnects and error handling from
// the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket
//     file first
//
// Performance Characteristics:
//
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
//   - Lower latency: Direct kernel-mediated IPC avoids network subsystem overhead
package unix

// Package cmd implements the command-line interface of mKV. It provides a
// hierarchical command structure for running the server and for interacting
// with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the mKV server (tcp or unix transport, optional TLS)
//   - kv: Key-value operations (get, getall, mget, set, mset, del, mdel, exists, mexists) and the perf benchmark
//   - pubsub: Publish/subscribe operations (publish, subscribe, unsubscribe)
//   - config: Generates and validates toml config files
//   - util: Shared utilities for flags and configuration (internal use)
//
// Configuration is read from the file given by --config, MKV_ environment
// variables (also from .env and .env.local) and flags, in increasing precedence.
//
// See mkv --help for a list of all commands.
package cmd

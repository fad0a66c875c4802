// Package store provides the storage collaborator of the mKV server: a
// table based key-value interface with unified error handling.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining get, get all, set, delete
//     and has operations on (table, key). Writes return the previous value so
//     the protocol layer can answer hset/hdel with it. All implementations share
//     this interface, so the server does not depend on a specific backend.
//
//   - Error System: A structured error reporting mechanism using typed return
//     codes (RetCode) and descriptive messages. The protocol layer turns these
//     errors into error responses.
//
// Implementations:
//
//   - MemTable (memtable): An in-memory store built from nested concurrent
//     maps. Unrelated tables and keys never contend on a common lock.
//     Available in the "github.com/ValentinKolb/mKV/lib/store/memtable" package.
//
// Durability is not provided, all data is lost when the process exits.
package store

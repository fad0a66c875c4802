package store

import (
	"fmt"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with a table based key–value store.
// Every key lives in a table, tables are created implicitly by the first write.
// Write operations return the previous value, read operations the requested data,
// both along with a *Error (nil on success).
type IStore interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(table, key string) (value common.Value, loaded bool, err error)
	// GetAll returns all pairs of a table sorted by key. An unknown table has no pairs.
	GetAll(table string) (pairs []common.Kvpair, err error)
	// Set inserts or updates a key–value pair and returns the previous value if there was one.
	Set(table, key string, value common.Value) (old common.Value, loaded bool, err error)
	// Delete deletes a key–value pair and returns the deleted value if there was one.
	Delete(table, key string) (old common.Value, loaded bool, err error)
	// Has returns whether a key exists in the table.
	Has(table, key string) (loaded bool, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation.
)

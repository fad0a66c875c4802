package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies every error that can cross the protocol layer
type ErrorKind uint8

const (
	KindInternal             ErrorKind = iota // Unexpected internal failure
	KindFrameTooLarge                         // Message is larger than the max frame size
	KindMalformedFrame                        // Header and length are inconsistent
	KindTruncatedFrame                        // Frame ended before the announced length
	KindCompressionError                      // gzip (de)compression failed
	KindSerializationError                    // Message could not be (de)serialized
	KindConnectionClosed                      // Underlying connection or session is gone
	KindSubscriptionNotFound                  // Unknown or already removed subscription
	KindInvalidCommand                        // Request could not be classified
	KindNotFound                              // Key not found in table
	KindStorageError                          // Storage collaborator reported an error
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindFrameTooLarge:
		return "FrameTooLarge"
	case KindMalformedFrame:
		return "MalformedFrame"
	case KindTruncatedFrame:
		return "TruncatedFrame"
	case KindCompressionError:
		return "CompressionError"
	case KindSerializationError:
		return "SerializationError"
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindSubscriptionNotFound:
		return "SubscriptionNotFound"
	case KindInvalidCommand:
		return "InvalidCommand"
	case KindNotFound:
		return "NotFound"
	case KindStorageError:
		return "StorageError"
	default:
		return "Internal"
	}
}

// Status returns the response status code used when an error of this kind is
// sent back to a client.
func (k ErrorKind) Status() uint32 {
	switch k {
	case KindInvalidCommand, KindMalformedFrame, KindTruncatedFrame, KindSerializationError, KindCompressionError:
		return StatusBadRequest
	case KindNotFound, KindSubscriptionNotFound:
		return StatusNotFound
	case KindFrameTooLarge:
		return StatusTooLarge
	default:
		return StatusInternalError
	}
}

// kindFromStatus is the inverse of ErrorKind.Status, used by clients to turn
// an error response back into an error
func kindFromStatus(status uint32) ErrorKind {
	switch status {
	case StatusBadRequest:
		return KindInvalidCommand
	case StatusNotFound:
		return KindNotFound
	case StatusTooLarge:
		return KindFrameTooLarge
	default:
		return KindInternal
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps an ErrorKind and a message.
// errors.Is matches two *Error values when their kinds are equal, so the
// sentinels below can be used to test for a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new Error with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is
var (
	ErrFrameTooLarge        = &Error{Kind: KindFrameTooLarge}
	ErrMalformedFrame       = &Error{Kind: KindMalformedFrame}
	ErrTruncatedFrame       = &Error{Kind: KindTruncatedFrame}
	ErrCompression          = &Error{Kind: KindCompressionError}
	ErrSerialization        = &Error{Kind: KindSerializationError}
	ErrConnectionClosed     = &Error{Kind: KindConnectionClosed}
	ErrSubscriptionNotFound = &Error{Kind: KindSubscriptionNotFound}
	ErrInvalidCommand       = &Error{Kind: KindInvalidCommand}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrStorage              = &Error{Kind: KindStorageError}
	ErrInternal             = &Error{Kind: KindInternal}
)

// Package frame implements the wire format of the mKV protocol.
//
// Every message is sent as one frame:
//
//	Frame := u32(header, big-endian) ++ payload
//	header bit 31       = compression flag
//	header bits [0, 31) = payload length in bytes (after compression)
//	payload             = serialized message (gzip compressed if flagged)
//
// Payloads whose serialized size exceeds CompressionLimit (1436 bytes) are
// compressed with gzip. Smaller messages are sent as is, so small requests
// never pay for compression.
//
// Key Components:
//
//   - Codec: Encodes a message into a frame appended to a buffer and decodes
//     the first frame of a buffer. Decoding never consumes a partial frame.
//
//   - Stream: Wraps a duplex byte connection (for example one logical stream
//     of a multiplexed connection) and provides Recv, Send, Flush and Close.
//     Send only encodes into a write buffer, Flush writes all pending frames.
//
// Errors are reported as *common.Error with the kinds FrameTooLarge,
// MalformedFrame, TruncatedFrame, CompressionError and SerializationError.
// None of them is retried, the owner of the stream decides what to do.
package frame

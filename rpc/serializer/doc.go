// Package serializer turns a common.Message into the payload of a frame and
// back. The frame codec is parameterised by one IRPCSerializer, client and
// server must use the same one.
//
// Implementations:
//
//   - Binary (default): Flag based format. A leading bitmask marks the present
//     fields, so a response carrying only a status and one value costs a few
//     bytes. Values are written as a kind byte followed by their payload.
//
//   - Proto: The protocol buffers wire format written with protowire. Field
//     numbers are fixed in protoimpl.go, so peers in other languages can decode
//     messages with a generated type. Slightly larger than Binary.
//
//   - JSON: Human readable, useful when debugging with packet captures.
//
//   - GOB: Go's gob encoding. Largest payloads and slowest, kept for parity.
//
// A payload that cannot be decoded is reported as common.ErrSerialization by
// the frame codec. Deserialize always resets the target message first.
//
// Thread Safety:
//
//	All serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewHgetRequest("users", "alice"))
//	// ... send data ...
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer

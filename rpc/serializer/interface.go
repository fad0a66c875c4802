package serializer

import "github.com/ValentinKolb/mKV/rpc/common"

// IRPCSerializer turns a Message into a frame payload and back.
// Implementations are stateless and safe for concurrent use.
type IRPCSerializer interface {
	// Serialize encodes msg. The returned slice is owned by the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. msg is reset first, so no field of a
	// previously decoded message survives. b belongs to the frame codec's read
	// buffer and is reused after the call, so nothing may keep a reference to it.
	// Any error is reported by the codec as common.ErrSerialization.
	Deserialize(b []byte, msg *common.Message) error
}

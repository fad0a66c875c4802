package serializer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTable  uint16 = 1 << 0
	hasKey    uint16 = 1 << 1
	hasKeys   uint16 = 1 << 2
	hasTopic  uint16 = 1 << 3
	hasSubID  uint16 = 1 << 4
	hasPairs  uint16 = 1 << 5
	hasValues uint16 = 1 << 6
	hasStatus uint16 = 1 << 7
	hasErr    uint16 = 1 << 8
)

// headerSize is 1 byte MsgType + 2 bytes flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	if msg.Table != "" {
		flags |= hasTable
		result = appendString(result, msg.Table)
	}

	if msg.Key != "" {
		flags |= hasKey
		result = appendString(result, msg.Key)
	}

	if len(msg.Keys) > 0 {
		flags |= hasKeys
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			result = appendString(result, k)
		}
	}

	if msg.Topic != "" {
		flags |= hasTopic
		result = appendString(result, msg.Topic)
	}

	if msg.SubID != 0 {
		flags |= hasSubID
		result = binary.BigEndian.AppendUint32(result, msg.SubID)
	}

	if len(msg.Pairs) > 0 {
		flags |= hasPairs
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Pairs)))
		for _, p := range msg.Pairs {
			result = appendString(result, p.Key)
			result = appendValue(result, p.Value)
		}
	}

	if len(msg.Values) > 0 {
		flags |= hasValues
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Values)))
		for _, v := range msg.Values {
			result = appendValue(result, v)
		}
	}

	if msg.Status != 0 {
		flags |= hasStatus
		result = binary.BigEndian.AppendUint32(result, msg.Status)
	}

	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:headerSize], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{}

	// Read message type and flags
	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:headerSize])

	r := &binaryReader{data: data, pos: headerSize}

	if flags&hasTable != 0 {
		msg.Table = r.string("table")
	}

	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}

	if flags&hasKeys != 0 {
		n := r.count("keys")
		if r.err == nil {
			msg.Keys = make([]string, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				msg.Keys = append(msg.Keys, r.string("keys"))
			}
		}
	}

	if flags&hasTopic != 0 {
		msg.Topic = r.string("topic")
	}

	if flags&hasSubID != 0 {
		msg.SubID = r.uint32("sub id")
	}

	if flags&hasPairs != 0 {
		n := r.count("pairs")
		if r.err == nil {
			msg.Pairs = make([]common.Kvpair, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				key := r.string("pair key")
				msg.Pairs = append(msg.Pairs, common.NewKvpair(key, r.value()))
			}
		}
	}

	if flags&hasValues != 0 {
		n := r.count("values")
		if r.err == nil {
			msg.Values = make([]common.Value, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				msg.Values = append(msg.Values, r.value())
			}
		}
	}

	if flags&hasStatus != 0 {
		msg.Status = r.uint32("status")
	}

	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Table != "" {
		size += 4 + len(msg.Table)
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if len(msg.Keys) > 0 {
		size += 4
		for _, k := range msg.Keys {
			size += 4 + len(k)
		}
	}
	if msg.Topic != "" {
		size += 4 + len(msg.Topic)
	}
	if msg.SubID != 0 {
		size += 4
	}
	if len(msg.Pairs) > 0 {
		size += 4
		for _, p := range msg.Pairs {
			size += 4 + len(p.Key) + valueSize(p.Value)
		}
	}
	if len(msg.Values) > 0 {
		size += 4
		for _, v := range msg.Values {
			size += valueSize(v)
		}
	}
	if msg.Status != 0 {
		size += 4
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// valueSize returns the encoded size of a value (1 byte kind + payload)
func valueSize(v common.Value) int {
	switch v.Kind {
	case common.ValueString:
		return 1 + 4 + len(v.Str)
	case common.ValueBinary:
		return 1 + 4 + len(v.Bin)
	case common.ValueInteger, common.ValueFloat:
		return 1 + 8
	case common.ValueBool:
		return 1 + 1
	default:
		return 1
	}
}

// appendString writes a length prefixed string
func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// appendValue writes the kind byte followed by the kind specific payload
func appendValue(buf []byte, v common.Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case common.ValueString:
		buf = appendString(buf, v.Str)
	case common.ValueBinary:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.Bin)))
		buf = append(buf, v.Bin...)
	case common.ValueInteger:
		buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int))
	case common.ValueFloat:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case common.ValueBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// binaryReader reads fields from a serialized message. The first error is
// kept and all following reads become no-ops.
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", what)
		return false
	}
	return true
}

func (r *binaryReader) uint32(what string) uint32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binaryReader) uint64(what string) uint64 {
	if !r.need(8, what) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// count reads an element count. Every element needs at least one byte, so
// counts larger than the remaining data are rejected before allocating.
func (r *binaryReader) count(what string) int {
	n := int(r.uint32(what + " count"))
	if r.err == nil && n > len(r.data)-r.pos {
		r.err = fmt.Errorf("invalid %s count %d", what, n)
		return 0
	}
	return n
}

func (r *binaryReader) bytes(what string) []byte {
	n := int(r.uint32(what + " length"))
	if !r.need(n, what+" data") {
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *binaryReader) string(what string) string {
	return string(r.bytes(what))
}

func (r *binaryReader) value() common.Value {
	if !r.need(1, "value kind") {
		return common.Value{}
	}
	kind := common.ValueKind(r.data[r.pos])
	r.pos++

	switch kind {
	case common.ValueNone:
		return common.Value{}
	case common.ValueString:
		return common.StringValue(r.string("string value"))
	case common.ValueBinary:
		raw := r.bytes("binary value")
		// create an empty slice (not nil) if length is 0
		b := make([]byte, len(raw))
		copy(b, raw)
		return common.BinaryValue(b)
	case common.ValueInteger:
		return common.IntValue(int64(r.uint64("integer value")))
	case common.ValueFloat:
		return common.FloatValue(math.Float64frombits(r.uint64("float value")))
	case common.ValueBool:
		if !r.need(1, "bool value") {
			return common.Value{}
		}
		v := r.data[r.pos] != 0
		r.pos++
		return common.BoolValue(v)
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown value kind %d", kind)
		}
		return common.Value{}
	}
}

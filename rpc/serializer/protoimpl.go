package serializer

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/mKV/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// NewProtoSerializer creates a new serializer writing the protocol buffers
// wire format. The schema is fixed by the field numbers below, so messages can
// be read by any protobuf implementation with a matching .proto definition.
func NewProtoSerializer() IRPCSerializer {
	return &protoSerializerImpl{}
}

// protoSerializerImpl implements IRPCSerializer with protowire
type protoSerializerImpl struct {
}

// Field numbers of the Message record
const (
	fieldMsgType protowire.Number = 1
	fieldTable   protowire.Number = 2
	fieldKey     protowire.Number = 3
	fieldKeys    protowire.Number = 4
	fieldTopic   protowire.Number = 5
	fieldSubID   protowire.Number = 6
	fieldPairs   protowire.Number = 7
	fieldValues  protowire.Number = 8
	fieldStatus  protowire.Number = 9
	fieldErr     protowire.Number = 10
)

// Field numbers of the nested Kvpair record
const (
	fieldPairKey   protowire.Number = 1
	fieldPairValue protowire.Number = 2
)

// Field numbers of the nested Value record
const (
	fieldValueKind  protowire.Number = 1
	fieldValueStr   protowire.Number = 2
	fieldValueBin   protowire.Number = 3
	fieldValueInt   protowire.Number = 4 // sint64
	fieldValueFloat protowire.Number = 5 // double
	fieldValueBool  protowire.Number = 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (p protoSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var b []byte

	if msg.MsgType != common.MsgTUnknown {
		b = appendVarintField(b, fieldMsgType, uint64(msg.MsgType))
	}
	b = appendStringField(b, fieldTable, msg.Table)
	b = appendStringField(b, fieldKey, msg.Key)
	for _, k := range msg.Keys {
		// repeated strings are written even if empty to keep positions
		b = protowire.AppendTag(b, fieldKeys, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	b = appendStringField(b, fieldTopic, msg.Topic)
	if msg.SubID != 0 {
		b = appendVarintField(b, fieldSubID, uint64(msg.SubID))
	}
	for _, pair := range msg.Pairs {
		b = protowire.AppendTag(b, fieldPairs, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPair(pair))
	}
	for _, v := range msg.Values {
		b = protowire.AppendTag(b, fieldValues, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(v))
	}
	if msg.Status != 0 {
		b = appendVarintField(b, fieldStatus, uint64(msg.Status))
	}
	b = appendStringField(b, fieldErr, msg.Err)

	return b, nil
}

func (p protoSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}

	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldMsgType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			msg.MsgType = common.MessageType(v)
			return n, nil
		case num == fieldTable && typ == protowire.BytesType:
			return consumeString(b, &msg.Table)
		case num == fieldKey && typ == protowire.BytesType:
			return consumeString(b, &msg.Key)
		case num == fieldKeys && typ == protowire.BytesType:
			var k string
			n, err := consumeString(b, &k)
			msg.Keys = append(msg.Keys, k)
			return n, err
		case num == fieldTopic && typ == protowire.BytesType:
			return consumeString(b, &msg.Topic)
		case num == fieldSubID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			msg.SubID = uint32(v)
			return n, nil
		case num == fieldPairs && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			pair, err := unmarshalPair(raw)
			msg.Pairs = append(msg.Pairs, pair)
			return n, err
		case num == fieldValues && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			v, err := unmarshalValue(raw)
			msg.Values = append(msg.Values, v)
			return n, err
		case num == fieldStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			msg.Status = uint32(v)
			return n, nil
		case num == fieldErr && typ == protowire.BytesType:
			return consumeString(b, &msg.Err)
		default:
			// unknown fields are skipped
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func marshalPair(p common.Kvpair) []byte {
	var b []byte
	b = appendStringField(b, fieldPairKey, p.Key)
	b = protowire.AppendTag(b, fieldPairValue, protowire.BytesType)
	return protowire.AppendBytes(b, marshalValue(p.Value))
}

func marshalValue(v common.Value) []byte {
	var b []byte
	if v.Kind == common.ValueNone {
		return b
	}
	b = appendVarintField(b, fieldValueKind, uint64(v.Kind))
	switch v.Kind {
	case common.ValueString:
		b = appendStringField(b, fieldValueStr, v.Str)
	case common.ValueBinary:
		if len(v.Bin) > 0 {
			b = protowire.AppendTag(b, fieldValueBin, protowire.BytesType)
			b = protowire.AppendBytes(b, v.Bin)
		}
	case common.ValueInteger:
		b = appendVarintField(b, fieldValueInt, protowire.EncodeZigZag(v.Int))
	case common.ValueFloat:
		b = protowire.AppendTag(b, fieldValueFloat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Float))
	case common.ValueBool:
		b = appendVarintField(b, fieldValueBool, protowire.EncodeBool(v.Bool))
	}
	return b
}

func unmarshalPair(b []byte) (common.Kvpair, error) {
	var pair common.Kvpair
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldPairKey && typ == protowire.BytesType:
			return consumeString(b, &pair.Key)
		case num == fieldPairValue && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			v, err := unmarshalValue(raw)
			pair.Value = v
			return n, err
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return pair, err
}

func unmarshalValue(b []byte) (common.Value, error) {
	var v common.Value
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldValueKind && typ == protowire.VarintType:
			k, n := protowire.ConsumeVarint(b)
			v.Kind = common.ValueKind(k)
			return n, nil
		case num == fieldValueStr && typ == protowire.BytesType:
			return consumeString(b, &v.Str)
		case num == fieldValueBin && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				v.Bin = append([]byte(nil), raw...)
			}
			return n, nil
		case num == fieldValueInt && typ == protowire.VarintType:
			i, n := protowire.ConsumeVarint(b)
			v.Int = protowire.DecodeZigZag(i)
			return n, nil
		case num == fieldValueFloat && typ == protowire.Fixed64Type:
			f, n := protowire.ConsumeFixed64(b)
			v.Float = math.Float64frombits(f)
			return n, nil
		case num == fieldValueBool && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v.Bool = protowire.DecodeBool(x)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return v, err
	}
	if v.Kind > common.ValueBool {
		return v, fmt.Errorf("unknown value kind %d", v.Kind)
	}
	if v.Kind == common.ValueBinary && v.Bin == nil {
		v.Bin = []byte{}
	}
	return v, nil
}

func consumeString(b []byte, dst *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n, nil
}

// consumeFields walks all fields of a record. fn consumes the value of one
// field and returns the number of bytes read (negative on a wire error).
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("invalid value of field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

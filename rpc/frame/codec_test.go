package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON":   serializer.NewJSONSerializer,
	"GOB":    serializer.NewGOBSerializer,
	"Binary": serializer.NewBinarySerializer,
	"Proto":  serializer.NewProtoSerializer,
}

// testMessages returns messages on both sides of the compression limit
func testMessages() []*common.Message {
	return []*common.Message{
		common.NewHgetRequest("users", "alice"),
		common.NewHsetRequest("users", "alice", common.StringValue("admin")),
		common.NewPublishRequest("lobby", []common.Value{common.StringValue("hello")}),
		common.NewValuesResponse(common.MsgTSubscribe, common.IntValue(7)),
		common.NewHsetRequest("docs", "big", common.StringValue(strings.Repeat("compress me ", 500))),
		common.NewHsetRequest("docs", "bin", common.BinaryValue(bytes.Repeat([]byte{1, 2, 3, 4}, 4096))),
	}
}

func headerOf(t *testing.T, buf *bytes.Buffer) (int, bool) {
	t.Helper()
	if buf.Len() < HeaderSize {
		t.Fatalf("Buffer holds no header: %d bytes", buf.Len())
	}
	return DecodeHeader(binary.BigEndian.Uint32(buf.Bytes()[:HeaderSize]))
}

// TestCodecRoundTrip tests that every message survives encode and decode
func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			codec := NewCodec(factory(), nil)

			for i, msg := range testMessages() {
				var buf bytes.Buffer
				if err := codec.Encode(msg, &buf); err != nil {
					t.Fatalf("Failed to encode message %d: %v", i, err)
				}

				length, _ := headerOf(t, &buf)
				if length != buf.Len()-HeaderSize {
					t.Errorf("Header length %d does not match payload length %d", length, buf.Len()-HeaderSize)
				}

				var result common.Message
				if err := codec.Decode(&buf, &result); err != nil {
					t.Fatalf("Failed to decode message %d: %v", i, err)
				}
				if !reflect.DeepEqual(*msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %v\nResult: %v", i, msg, &result)
				}
				if buf.Len() != 0 {
					t.Errorf("Expected buffer to be drained, %d bytes left", buf.Len())
				}
			}
		})
	}
}

// TestCompressionBit tests that exactly the messages larger than the limit are compressed
func TestCompressionBit(t *testing.T) {
	s := serializer.NewBinarySerializer()
	codec := NewCodec(s, nil)

	for size := CompressionLimit - 40; size <= CompressionLimit+40; size++ {
		msg := common.NewPublishRequest("t", []common.Value{common.StringValue(strings.Repeat("x", size))})

		data, err := s.Serialize(*msg)
		if err != nil {
			t.Fatalf("Failed to serialize: %v", err)
		}

		var buf bytes.Buffer
		if err := codec.Encode(msg, &buf); err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}

		_, compressed := headerOf(t, &buf)
		if want := len(data) > CompressionLimit; compressed != want {
			t.Errorf("Serialized size %d: expected compressed=%v, got %v", len(data), want, compressed)
		}
	}
}

// TestHeader tests the header bit layout
func TestHeader(t *testing.T) {
	testCases := []struct {
		length     int
		compressed bool
		header     uint32
	}{
		{0, false, 0},
		{1436, false, 1436},
		{1437, true, 0x8000059d},
		{MaxFrameSize, false, 0x7fffffff},
		{MaxFrameSize, true, 0xffffffff},
	}

	for _, tc := range testCases {
		if h := EncodeHeader(tc.length, tc.compressed); h != tc.header {
			t.Errorf("EncodeHeader(%d, %v) = %#x, expected %#x", tc.length, tc.compressed, h, tc.header)
		}
		length, compressed := DecodeHeader(tc.header)
		if length != tc.length || compressed != tc.compressed {
			t.Errorf("DecodeHeader(%#x) = (%d, %v), expected (%d, %v)", tc.header, length, compressed, tc.length, tc.compressed)
		}
	}
}

// TestEncodeTooLarge tests that oversized messages are rejected and nothing is written
func TestEncodeTooLarge(t *testing.T) {
	codec := NewCodec(serializer.NewBinarySerializer(), &Options{MaxFrameSize: 64})

	var buf bytes.Buffer
	buf.WriteString("previous")

	msg := common.NewHsetRequest("t", "k", common.StringValue(strings.Repeat("a", 100)))
	err := codec.Encode(msg, &buf)
	if !errors.Is(err, common.ErrFrameTooLarge) {
		t.Fatalf("Expected FrameTooLarge, got %v", err)
	}
	if buf.String() != "previous" {
		t.Errorf("Buffer was modified: %q", buf.String())
	}
}

// TestDecodeTruncated tests that partial frames are not consumed
func TestDecodeTruncated(t *testing.T) {
	codec := NewCodec(serializer.NewBinarySerializer(), nil)

	for i, msg := range testMessages() {
		var full bytes.Buffer
		if err := codec.Encode(msg, &full); err != nil {
			t.Fatalf("Failed to encode message %d: %v", i, err)
		}
		frame := full.Bytes()

		for _, cut := range []int{0, 2, HeaderSize, len(frame) - 1} {
			buf := bytes.NewBuffer(append([]byte(nil), frame[:cut]...))

			var result common.Message
			err := codec.Decode(buf, &result)
			if !errors.Is(err, common.ErrTruncatedFrame) {
				t.Errorf("Message %d cut at %d: expected TruncatedFrame, got %v", i, cut, err)
			}
			if buf.Len() != cut {
				t.Errorf("Message %d cut at %d: partial frame was consumed", i, cut)
			}

			// completing the frame makes it decodable
			buf.Write(frame[cut:])
			if err := codec.Decode(buf, &result); err != nil {
				t.Errorf("Message %d cut at %d: failed to decode completed frame: %v", i, cut, err)
			}
		}
	}
}

// TestDecodeConsecutiveFrames tests that each decode consumes exactly one frame
func TestDecodeConsecutiveFrames(t *testing.T) {
	codec := NewCodec(serializer.NewBinarySerializer(), nil)
	messages := testMessages()

	var buf bytes.Buffer
	for _, msg := range messages {
		if err := codec.Encode(msg, &buf); err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
	}

	for i, msg := range messages {
		var result common.Message
		if err := codec.Decode(&buf, &result); err != nil {
			t.Fatalf("Failed to decode message %d: %v", i, err)
		}
		if !reflect.DeepEqual(*msg, result) {
			t.Errorf("Message %d doesn't match", i)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("Expected buffer to be drained, %d bytes left", buf.Len())
	}
}

// TestDecodeErrors tests the error kinds of invalid frames
func TestDecodeErrors(t *testing.T) {
	codec := NewCodec(serializer.NewBinarySerializer(), &Options{MaxFrameSize: 1 << 16})

	frameOf := func(header uint32, payload []byte) []byte {
		b := binary.BigEndian.AppendUint32(nil, header)
		return append(b, payload...)
	}

	testCases := []struct {
		name     string
		data     []byte
		expected error
	}{
		{
			name:     "Length above max frame size",
			data:     frameOf(EncodeHeader(1<<20, false), nil),
			expected: common.ErrMalformedFrame,
		},
		{
			name:     "Compressed flag without gzip payload",
			data:     frameOf(EncodeHeader(5, true), []byte("plain")),
			expected: common.ErrCompression,
		},
		{
			name:     "Payload that is no message",
			data:     frameOf(EncodeHeader(1, false), []byte{1}),
			expected: common.ErrSerialization,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := codec.Decode(bytes.NewBuffer(tc.data), &msg)
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"Proto":  NewProtoSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTHgetall, Table: "users"},

		// Set request
		*common.NewHsetRequest("users", "alice", common.StringValue("admin")),

		// Multi get request
		*common.NewHmgetRequest("users", []string{"alice", "bob", "carol"}),

		// Get response
		*common.NewValuesResponse(common.MsgTHget, common.IntValue(-42)),

		// Getall response with every value kind
		*common.NewPairsResponse(common.MsgTHgetall, []common.Kvpair{
			common.NewKvpair("s", common.StringValue("text")),
			common.NewKvpair("b", common.BinaryValue([]byte{0xde, 0xad, 0xbe, 0xef})),
			common.NewKvpair("i", common.IntValue(1<<40)),
			common.NewKvpair("f", common.FloatValue(3.25)),
			common.NewKvpair("t", common.BoolValue(true)),
		}),

		// Error response
		*common.NewErrorResponse(common.MsgTUnsubscribe, common.NewError(common.KindSubscriptionNotFound, "subscription 7")),

		// Pub/sub requests
		*common.NewPublishRequest("lobby", []common.Value{common.StringValue("hello"), common.FloatValue(-0.5)}),
		*common.NewUnsubscribeRequest("lobby", 4711),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTHget; msgType <= common.MsgTUnsubscribe; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestDeserializeResetsMessage makes sure fields of a reused message do not leak into the next one
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewHgetRequest("t", "k"))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			msg := common.Message{Topic: "stale", Keys: []string{"stale"}, Status: common.StatusNotFound}
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(msg, *common.NewHgetRequest("t", "k")) {
				t.Errorf("Stale fields after deserialize: %+v", msg)
			}
		})
	}
}

// TestDeserializeDoesNotRetainInput tests that a decoded message stays intact
// when the codec reuses the payload buffer
func TestDeserializeDoesNotRetainInput(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for _, want := range testMessages() {
				data, err := serializer.Serialize(want)
				if err != nil {
					t.Fatalf("Failed to serialize: %v", err)
				}

				var msg common.Message
				if err := serializer.Deserialize(data, &msg); err != nil {
					t.Fatalf("Failed to deserialize: %v", err)
				}

				for i := range data {
					data[i] = 0xff
				}

				if !reflect.DeepEqual(msg, want) {
					t.Errorf("Message changed after the payload was overwritten:\n got %+v\nwant %+v", msg, want)
				}
			}
		})
	}
}

// TestTrailingDataRejected tests that json and gob payloads must hold exactly one message
func TestTrailingDataRejected(t *testing.T) {
	for _, name := range []string{"JSON", "GOB"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			data, err := serializer.Serialize(*common.NewHgetRequest("t", "k"))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			twice := append(append([]byte{}, data...), data...)
			var msg common.Message
			if err := serializer.Deserialize(twice, &msg); err == nil {
				t.Errorf("Expected an error for two messages in one payload")
			}
		})
	}
}

// TestJSONUnknownFieldRejected tests that json payloads of another protocol version are rejected
func TestJSONUnknownFieldRejected(t *testing.T) {
	var msg common.Message
	err := NewJSONSerializer().Deserialize([]byte(`{"msg_type":"hget","table":"t","shard":100}`), &msg)
	if err == nil {
		t.Errorf("Expected an error for an unknown field")
	}
}

// TestEmptyBinaryValue tests that empty binary values stay binary values
func TestEmptyBinaryValue(t *testing.T) {
	for _, name := range []string{"Binary", "Proto"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			msg := common.NewValuesResponse(common.MsgTHget, common.BinaryValue([]byte{}), common.Value{})
			data, err := serializer.Serialize(*msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if len(result.Values) != 2 {
				t.Fatalf("Expected 2 values, got %d", len(result.Values))
			}
			if result.Values[0].Kind != common.ValueBinary || result.Values[0].Bin == nil || len(result.Values[0].Bin) != 0 {
				t.Errorf("Expected empty binary value, got %#v", result.Values[0])
			}
			if !result.Values[1].IsNone() {
				t.Errorf("Expected none value, got %#v", result.Values[1])
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Only message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for table",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims table length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid values count",
			data:        []byte{1, 0, 64, 0xff, 0xff, 0xff, 0xff}, // Claims 2^32-1 values
			expectError: true,
		},
		{
			name:        "Unknown value kind",
			data:        []byte{1, 0, 64, 0, 0, 0, 1, 99},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestInvalidProtoData tests how the proto serializer handles corrupt data
func TestInvalidProtoData(t *testing.T) {
	serializer := NewProtoSerializer()

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Truncated tag", data: []byte{0x80}},
		{name: "Truncated string", data: []byte{0x12, 0x05, 'a', 'b'}}, // field 2, length 5
		{name: "Truncated nested value", data: []byte{0x42, 0x02, 0x08}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			if err := serializer.Deserialize(tc.data, &msg); err == nil {
				t.Errorf("Expected error but got none")
			}
		})
	}
}

package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Response status codes
const (
	StatusOK            uint32 = 200
	StatusBadRequest    uint32 = 400
	StatusNotFound      uint32 = 404
	StatusTooLarge      uint32 = 413
	StatusInternalError uint32 = 500
)

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Table string   `json:"table,omitempty"` // Used for: all h* operations
	Key   string   `json:"key,omitempty"`   // Used for: hget, hdel, hexist
	Keys  []string `json:"keys,omitempty"`  // Used for: hmget, hmdel, hmexist
	Topic string   `json:"topic,omitempty"` // Used for: publish, subscribe, unsubscribe
	SubID uint32   `json:"sub_id,omitempty"`

	// Shared fields
	Pairs  []Kvpair `json:"pairs,omitempty"`  // Used for: hset, hmset (request), hgetall (response)
	Values []Value  `json:"values,omitempty"` // Used for: publish (request), all value responses

	// Response only fields
	Status uint32 `json:"status,omitempty"` // StatusOK or an error status
	Err    string `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message
}

// IsOk returns true if the message is a successful response
func (m *Message) IsOk() bool {
	return m.Status == StatusOK && m.Err == ""
}

// AsError converts an error response into an error. It returns nil for
// successful responses.
func (m *Message) AsError() error {
	if m.IsOk() {
		return nil
	}
	kind := kindFromStatus(m.Status)
	if m.MsgType == MsgTUnsubscribe && kind == KindNotFound {
		kind = KindSubscriptionNotFound
	}
	return &Error{Kind: kind, Msg: m.Err}
}

// String returns a short human readable representation of the message
func (m *Message) String() string {
	if m.Status != 0 {
		return fmt.Sprintf("%s(status=%d err=%q values=%v pairs=%v)", m.MsgType, m.Status, m.Err, m.Values, m.Pairs)
	}
	return fmt.Sprintf("%s(table=%q key=%q keys=%v topic=%q id=%d values=%v pairs=%v)",
		m.MsgType, m.Table, m.Key, m.Keys, m.Topic, m.SubID, m.Values, m.Pairs)
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewHgetRequest creates a new hget request
func NewHgetRequest(table, key string) *Message {
	return &Message{MsgType: MsgTHget, Table: table, Key: key}
}

// NewHgetallRequest creates a new hgetall request
func NewHgetallRequest(table string) *Message {
	return &Message{MsgType: MsgTHgetall, Table: table}
}

// NewHmgetRequest creates a new hmget request
func NewHmgetRequest(table string, keys []string) *Message {
	return &Message{MsgType: MsgTHmget, Table: table, Keys: keys}
}

// NewHsetRequest creates a new hset request
func NewHsetRequest(table, key string, value Value) *Message {
	return &Message{MsgType: MsgTHset, Table: table, Pairs: []Kvpair{NewKvpair(key, value)}}
}

// NewHmsetRequest creates a new hmset request
func NewHmsetRequest(table string, pairs []Kvpair) *Message {
	return &Message{MsgType: MsgTHmset, Table: table, Pairs: pairs}
}

// NewHdelRequest creates a new hdel request
func NewHdelRequest(table, key string) *Message {
	return &Message{MsgType: MsgTHdel, Table: table, Key: key}
}

// NewHmdelRequest creates a new hmdel request
func NewHmdelRequest(table string, keys []string) *Message {
	return &Message{MsgType: MsgTHmdel, Table: table, Keys: keys}
}

// NewHexistRequest creates a new hexist request
func NewHexistRequest(table, key string) *Message {
	return &Message{MsgType: MsgTHexist, Table: table, Key: key}
}

// NewHmexistRequest creates a new hmexist request
func NewHmexistRequest(table string, keys []string) *Message {
	return &Message{MsgType: MsgTHmexist, Table: table, Keys: keys}
}

// NewPublishRequest creates a new publish request
func NewPublishRequest(topic string, values []Value) *Message {
	return &Message{MsgType: MsgTPublish, Topic: topic, Values: values}
}

// NewSubscribeRequest creates a new subscribe request
func NewSubscribeRequest(topic string) *Message {
	return &Message{MsgType: MsgTSubscribe, Topic: topic}
}

// NewUnsubscribeRequest creates a new unsubscribe request
func NewUnsubscribeRequest(topic string, id uint32) *Message {
	return &Message{MsgType: MsgTUnsubscribe, Topic: topic, SubID: id}
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// NewOkResponse creates an empty successful response
func NewOkResponse(t MessageType) *Message {
	return &Message{MsgType: t, Status: StatusOK}
}

// NewValuesResponse creates a successful response carrying values
func NewValuesResponse(t MessageType, values ...Value) *Message {
	return &Message{MsgType: t, Status: StatusOK, Values: values}
}

// NewPairsResponse creates a successful response carrying key-value pairs
func NewPairsResponse(t MessageType, pairs []Kvpair) *Message {
	return &Message{MsgType: t, Status: StatusOK, Pairs: pairs}
}

// NewErrorResponse creates an error response. The status is derived from
// the kind of err (see ErrorKind.Status).
func NewErrorResponse(t MessageType, err error) *Message {
	return &Message{
		MsgType: t,
		Status:  KindOf(err).Status(),
		Err:     err.Error(),
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTHget:        "hget",
	MsgTHgetall:     "hgetall",
	MsgTHmget:       "hmget",
	MsgTHset:        "hset",
	MsgTHmset:       "hmset",
	MsgTHdel:        "hdel",
	MsgTHmdel:       "hmdel",
	MsgTHexist:      "hexist",
	MsgTHmexist:     "hmexist",
	MsgTPublish:     "publish",
	MsgTSubscribe:   "subscribe",
	MsgTUnsubscribe: "unsubscribe",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsUnary reports whether the request maps to exactly one point storage
// operation and is answered with a single response.
func (t MessageType) IsUnary() bool {
	return t >= MsgTHget && t <= MsgTHmexist
}

// IsStreaming reports whether the request is a publish/subscribe operation
// answered with a response sequence.
func (t MessageType) IsStreaming() bool {
	return t >= MsgTPublish && t <= MsgTUnsubscribe
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "unknown" {
		*t = MsgTUnknown
		return nil
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota

	// Unary (storage) operations

	MsgTHget    // Get a value by table and key
	MsgTHgetall // Get all pairs of a table
	MsgTHmget   // Get multiple keys
	MsgTHset    // Set a key-value pair
	MsgTHmset   // Set multiple key-value pairs
	MsgTHdel    // Delete a key
	MsgTHmdel   // Delete multiple keys
	MsgTHexist  // Check if a key exists
	MsgTHmexist // Check if multiple keys exist

	// Streaming (pub/sub) operations

	MsgTPublish     // Publish values to a topic
	MsgTSubscribe   // Subscribe to a topic
	MsgTUnsubscribe // Remove a subscription
)

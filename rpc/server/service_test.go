package server

import (
	"context"
	"testing"

	"github.com/ValentinKolb/mKV/lib/store/memtable"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// first returns the single response of a finite response sequence
func first(t *testing.T, responses ResponseStream) *common.Message {
	t.Helper()
	msg, ok := responses.Next(context.Background())
	require.True(t, ok)
	_, ok = responses.Next(context.Background())
	require.False(t, ok, "expected exactly one response")
	return msg
}

func TestDispatchUnary(t *testing.T) {
	s := memtable.NewMemTable()

	// set returns the previous value
	resp := DispatchUnary(common.NewHsetRequest("t1", "k1", common.StringValue("v1")), s)
	require.True(t, resp.IsOk())
	require.Len(t, resp.Values, 1)
	assert.True(t, resp.Values[0].IsNone())

	resp = DispatchUnary(common.NewHsetRequest("t1", "k1", common.StringValue("v2")), s)
	require.Len(t, resp.Values, 1)
	assert.Equal(t, "v1", resp.Values[0].Str)

	// get
	resp = DispatchUnary(common.NewHgetRequest("t1", "k1"), s)
	require.True(t, resp.IsOk())
	assert.Equal(t, []common.Value{common.StringValue("v2")}, resp.Values)

	// get of an unknown key
	resp = DispatchUnary(common.NewHgetRequest("t1", "missing"), s)
	assert.Equal(t, common.StatusNotFound, resp.Status)
	assert.ErrorIs(t, resp.AsError(), common.ErrNotFound)

	// multi set and get
	resp = DispatchUnary(common.NewHmsetRequest("t1", []common.Kvpair{
		common.NewKvpair("k1", common.IntValue(1)),
		common.NewKvpair("k2", common.IntValue(2)),
	}), s)
	require.True(t, resp.IsOk())
	assert.Equal(t, []common.Value{common.StringValue("v2"), {}}, resp.Values)

	resp = DispatchUnary(common.NewHmgetRequest("t1", []string{"k1", "missing", "k2"}), s)
	assert.Equal(t, []common.Value{common.IntValue(1), {}, common.IntValue(2)}, resp.Values)

	// get all
	resp = DispatchUnary(common.NewHgetallRequest("t1"), s)
	assert.Equal(t, []common.Kvpair{
		common.NewKvpair("k1", common.IntValue(1)),
		common.NewKvpair("k2", common.IntValue(2)),
	}, resp.Pairs)

	// exists
	resp = DispatchUnary(common.NewHexistRequest("t1", "k1"), s)
	assert.Equal(t, []common.Value{common.BoolValue(true)}, resp.Values)

	resp = DispatchUnary(common.NewHmexistRequest("t1", []string{"k1", "missing"}), s)
	assert.Equal(t, []common.Value{common.BoolValue(true), common.BoolValue(false)}, resp.Values)

	// delete returns the deleted value
	resp = DispatchUnary(common.NewHdelRequest("t1", "k1"), s)
	assert.Equal(t, []common.Value{common.IntValue(1)}, resp.Values)

	resp = DispatchUnary(common.NewHmdelRequest("t1", []string{"k1", "k2"}), s)
	assert.Equal(t, []common.Value{{}, common.IntValue(2)}, resp.Values)

	resp = DispatchUnary(common.NewHgetallRequest("t1"), s)
	assert.Empty(t, resp.Pairs)
}

func TestDispatchUnaryStorageError(t *testing.T) {
	s := memtable.NewMemTable()

	resp := DispatchUnary(common.NewHsetRequest("", "k", common.IntValue(1)), s)
	assert.Equal(t, common.StatusBadRequest, resp.Status)
	assert.NotEmpty(t, resp.Err)

	resp = DispatchUnary(common.NewHgetRequest("t", "k"), nil)
	assert.Equal(t, common.StatusInternalError, resp.Status)
}

func TestDispatchStream(t *testing.T) {
	b := pubsub.NewBroadcaster()

	// subscribe yields the id first
	sub := DispatchStream(common.NewSubscribeRequest("lobby"), b)
	defer sub.Close()
	msg, ok := sub.Next(context.Background())
	require.True(t, ok)
	id, err := msg.Values[0].AsInt()
	require.NoError(t, err)

	// publish is acknowledged
	resp := first(t, DispatchStream(common.NewPublishRequest("lobby", []common.Value{common.StringValue("hello")}), b))
	assert.True(t, resp.IsOk())

	msg, ok = sub.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Values[0].Str)

	// unsubscribe
	resp = first(t, DispatchStream(common.NewUnsubscribeRequest("lobby", uint32(id)), b))
	assert.True(t, resp.IsOk())

	resp = first(t, DispatchStream(common.NewUnsubscribeRequest("lobby", 9527), b))
	assert.Equal(t, common.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Err, "subscription 9527")
	assert.ErrorIs(t, resp.AsError(), common.ErrSubscriptionNotFound)
}

func TestDispatchStreamPanicsOnUnaryRequest(t *testing.T) {
	b := pubsub.NewBroadcaster()
	assert.Panics(t, func() {
		DispatchStream(common.NewHgetRequest("t", "k"), b)
	})
}

func TestExecuteUnknownType(t *testing.T) {
	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster())

	resp := first(t, service.Execute(&common.Message{}))
	assert.Equal(t, common.StatusBadRequest, resp.Status)
	assert.ErrorIs(t, resp.AsError(), common.ErrInvalidCommand)
}

func TestServiceHooks(t *testing.T) {
	var received, executed int

	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster()).
		OnReceived(func(*common.Message) { received++ }).
		OnExecuted(func(*common.Message) { executed++ }).
		OnBeforeSend(func(resp *common.Message) {
			resp.Values = append(resp.Values, common.StringValue("hooked"))
		})

	resp := first(t, service.Execute(common.NewHsetRequest("t", "k", common.IntValue(1))))
	assert.Equal(t, []common.Value{{}, common.StringValue("hooked")}, resp.Values)
	assert.Equal(t, 1, received)
	assert.Equal(t, 1, executed)

	// streaming requests only pass the received hook
	first(t, service.Execute(common.NewPublishRequest("lobby", nil)))
	assert.Equal(t, 2, received)
	assert.Equal(t, 1, executed)
}

package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/lib/store/memtable"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startStream processes the server side of a pipe and returns the client side
// as frame stream plus a channel receiving the result of Process
func startStream(t *testing.T, service *Service) (*frame.Stream, <-chan error) {
	codec := frame.NewCodec(serializer.NewBinarySerializer(), nil)
	serverConn, clientConn := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- NewServerStream(serverConn, codec, service, 5*time.Second).Process(context.Background())
	}()

	client := frame.NewStream(clientConn, codec)
	_ = clientConn.SetDeadline(time.Now().Add(10 * time.Second))
	t.Cleanup(func() { _ = clientConn.Close() })
	return client, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return")
		return nil
	}
}

func TestServerStreamUnary(t *testing.T) {
	var sent atomic.Int32
	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster()).
		OnAfterSend(func() { sent.Add(1) })

	client, done := startStream(t, service)

	// several requests on one stream are answered in order
	require.NoError(t, client.SendAndFlush(common.NewHsetRequest("t", "k", common.StringValue("v"))))
	var resp common.Message
	require.NoError(t, client.Recv(&resp))
	assert.True(t, resp.IsOk())

	require.NoError(t, client.SendAndFlush(common.NewHgetRequest("t", "k")))
	require.NoError(t, client.Recv(&resp))
	assert.Equal(t, common.MsgTHget, resp.MsgType)
	assert.Equal(t, []common.Value{common.StringValue("v")}, resp.Values)

	// closing the client side ends the stream cleanly
	require.NoError(t, client.Close())
	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, int32(2), sent.Load())
}

func TestServerStreamSubscription(t *testing.T) {
	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster())
	client, done := startStream(t, service)

	require.NoError(t, client.SendAndFlush(common.NewSubscribeRequest("lobby")))

	var resp common.Message
	require.NoError(t, client.Recv(&resp))
	require.True(t, resp.IsOk())
	id, err := resp.Values[0].AsInt()
	require.NoError(t, err)

	service.Broadcaster().Publish("lobby", []common.Value{common.StringValue("hello")})

	require.NoError(t, client.Recv(&resp))
	assert.Equal(t, []common.Value{common.StringValue("hello")}, resp.Values)

	// removing the subscription closes the stream
	_, err = service.Broadcaster().Unsubscribe("lobby", uint32(id))
	require.NoError(t, err)

	assert.ErrorIs(t, client.Recv(&resp), io.EOF)
	assert.NoError(t, waitDone(t, done))
}

func TestServerStreamSubscriberGone(t *testing.T) {
	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster())
	client, done := startStream(t, service)

	require.NoError(t, client.SendAndFlush(common.NewSubscribeRequest("lobby")))
	var resp common.Message
	require.NoError(t, client.Recv(&resp))

	// the client goes away, the subscription is pruned at the next publish
	require.NoError(t, client.Close())
	assert.NoError(t, waitDone(t, done))

	service.Broadcaster().Publish("lobby", []common.Value{common.StringValue("hello")})
	require.Eventually(t, func() bool {
		return !service.Broadcaster().HasTopic("lobby")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerStreamMalformedRequest(t *testing.T) {
	service := NewService(memtable.NewMemTable(), pubsub.NewBroadcaster())
	client, done := startStream(t, service)

	// a complete frame whose payload is no message
	var frameBuf bytes.Buffer
	_ = binary.Write(&frameBuf, binary.BigEndian, frame.EncodeHeader(1, false))
	frameBuf.WriteByte(0x01)
	_, err := client.Conn().Write(frameBuf.Bytes())
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, client.Recv(&resp))
	assert.Equal(t, common.StatusBadRequest, resp.Status)

	assert.ErrorIs(t, waitDone(t, done), common.ErrSerialization)
}

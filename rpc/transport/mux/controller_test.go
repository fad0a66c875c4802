package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createConnPair creates a pair of connected tcp connections
func createConnPair(t *testing.T) (net.Conn, net.Conn) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var serverConn net.Conn
	var serverErr error
	done := make(chan struct{})

	go func() {
		serverConn, serverErr = listener.Accept()
		close(done)
	}()

	clientConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)

	<-done
	require.NoError(t, serverErr)
	listener.Close()

	return serverConn, clientConn
}

// createControllerPair creates a serving server controller and a client controller
func createControllerPair(t *testing.T, handler Handler) (*Controller, *Controller, <-chan error) {
	serverConn, clientConn := createConnPair(t)

	server, err := NewServer(serverConn, common.DefaultMuxConf())
	require.NoError(t, err)

	client, err := NewClient(clientConn, common.DefaultMuxConf())
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(handler)
	}()

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return server, client, served
}

// echo copies everything back to the sender
func echo(_ context.Context, stream net.Conn) error {
	_, err := io.Copy(stream, stream)
	return err
}

func TestNewController(t *testing.T) {
	server, client, _ := createControllerPair(t, echo)

	assert.True(t, server.IsServer())
	assert.False(t, client.IsServer())
	assert.False(t, server.IsClosed())
	assert.False(t, client.IsClosed())
	assert.Equal(t, 0, client.NumStreams())
}

func TestOpenStreamEcho(t *testing.T) {
	_, client, _ := createControllerPair(t, echo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.OpenStream(ctx)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestConcurrentStreamsAreIndependent(t *testing.T) {
	_, client, _ := createControllerPair(t, echo)

	const streams = 32
	var wg sync.WaitGroup
	errs := make(chan error, streams)

	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			stream, err := client.OpenStream(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer stream.Close()

			msg := []byte(fmt.Sprintf("message from stream %02d", i))
			for round := 0; round < 10; round++ {
				if _, err := stream.Write(msg); err != nil {
					errs <- err
					return
				}
				got := make([]byte, len(msg))
				if _, err := io.ReadFull(stream, got); err != nil {
					errs <- err
					return
				}
				if string(got) != string(msg) {
					errs <- fmt.Errorf("stream %d got %q", i, got)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestHandlerErrorEndsOnlyItsStream(t *testing.T) {
	handler := func(ctx context.Context, stream net.Conn) error {
		buf := make([]byte, 4)
		if _, err := io.ReadFull(stream, buf); err != nil {
			return err
		}
		if string(buf) == "fail" {
			return errors.New("handler failed")
		}
		_, err := stream.Write(buf)
		return err
	}
	_, client, _ := createControllerPair(t, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failing, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = failing.Write([]byte("fail"))
	require.NoError(t, err)

	// the failing stream is closed by the server
	_, err = io.ReadAll(failing)
	require.NoError(t, err)

	// other streams keep working
	ok, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = ok.Write([]byte("pong"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(ok, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))
}

func TestConnectionCloseTerminatesStreams(t *testing.T) {
	started := make(chan struct{})
	handler := func(ctx context.Context, stream net.Conn) error {
		close(started)
		<-ctx.Done()
		return nil
	}
	server, client, served := createControllerPair(t, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = stream.Write([]byte("x"))
	require.NoError(t, err)
	<-started

	require.NoError(t, server.Close())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after close")
	}

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client session was not closed")
	}

	_, err = stream.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestOpenStreamOnClosedConnection(t *testing.T) {
	_, client, _ := createControllerPair(t, echo)
	require.NoError(t, client.Close())

	_, err := client.OpenStream(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConnectionClosed)
}

func TestOpenStreamCanceledContext(t *testing.T) {
	_, client, _ := createControllerPair(t, echo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the open may win the race against the canceled context, both outcomes are valid
	stream, err := client.OpenStream(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	} else {
		stream.Close()
	}
}

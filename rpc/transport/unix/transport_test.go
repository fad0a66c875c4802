package unix

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath returns a short socket path (unix socket paths are limited to ~100 bytes)
func socketPath(t *testing.T) string {
	dir, err := os.MkdirTemp("", "mkv")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "mkv.sock")
}

func TestUnixRoundTrip(t *testing.T) {
	path := socketPath(t)

	// a stale file at the socket path is replaced
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	serverConf := common.DefaultServerConfig()
	serverConf.Transport.Endpoint = path

	server := NewUnixServerTransport()
	server.RegisterHandler(func(_ context.Context, stream net.Conn) error {
		_, err := io.Copy(stream, stream)
		return err
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(serverConf)
	}()
	require.Eventually(t, func() bool { return server.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	conf := common.DefaultClientConfig()
	conf.Transport.Endpoints = []string{path}
	conf.Transport.ConnectionsPerEndpoint = 2

	client := NewUnixClientTransport()
	require.NoError(t, client.Connect(conf))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		stream, err := client.OpenStream(ctx)
		cancel()
		require.NoError(t, err)
		_ = stream.SetDeadline(time.Now().Add(5 * time.Second))

		_, err = stream.Write([]byte("ping"))
		require.NoError(t, err)

		buf := make([]byte, 4)
		_, err = io.ReadFull(stream, buf)
		require.NoError(t, err)
		assert.Equal(t, "ping", string(buf))
		require.NoError(t, stream.Close())
	}

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Error("Listen did not return after close")
	}
}

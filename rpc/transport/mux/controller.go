package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/yamux"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/mux")

// minStreamWindow is the smallest receive window yamux accepts
const minStreamWindow = 256 * 1024

var (
	sessionsOpened  = metrics.NewCounter(`mkv_mux_sessions_total`)
	streamsOpened   = metrics.NewCounter(`mkv_mux_streams_total{direction="outbound"}`)
	streamsAccepted = metrics.NewCounter(`mkv_mux_streams_total{direction="inbound"}`)
	streamErrors    = metrics.NewCounter(`mkv_mux_stream_errors_total`)
)

// Handler processes one inbound logical stream. ctx is canceled when the
// underlying connection closes. The stream is closed after the handler returns.
type Handler func(ctx context.Context, stream net.Conn) error

// Controller multiplexes one connection into many independent logical
// streams. Each logical stream is a net.Conn with its own flow control.
type Controller struct {
	session  *yamux.Session
	isServer bool
	closed   atomic.Bool
}

// NewClient creates a controller for the dialing side of conn. A client only opens streams.
func NewClient(conn net.Conn, conf common.MuxConf) (*Controller, error) {
	return newController(conn, conf, false)
}

// NewServer creates a controller for the accepting side of conn.
// Call Serve to handle inbound streams.
func NewServer(conn net.Conn, conf common.MuxConf) (*Controller, error) {
	return newController(conn, conf, true)
}

func newController(conn net.Conn, conf common.MuxConf, isServer bool) (*Controller, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection must not be nil")
	}

	var (
		session *yamux.Session
		err     error
	)
	if isServer {
		session, err = yamux.Server(conn, yamuxConfig(conf))
	} else {
		session, err = yamux.Client(conn, yamuxConfig(conf))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create mux session: %w", err)
	}

	sessionsOpened.Inc()
	return &Controller{session: session, isServer: isServer}, nil
}

// yamuxConfig converts the multiplexer configuration into a yamux config.
// yamux returns the receive window to the peer as soon as the consumer
// reads, MaxStreamWindowSize bounds the bytes buffered per stream.
func yamuxConfig(conf common.MuxConf) *yamux.Config {
	conf = conf.WithDefaults()

	cfg := yamux.DefaultConfig()
	cfg.AcceptBacklog = conf.AcceptBacklog
	cfg.MaxStreamWindowSize = max(conf.MaxStreamWindowSize, minStreamWindow)
	cfg.ConnectionWriteTimeout = time.Duration(conf.WriteTimeoutSec) * time.Second
	cfg.StreamOpenTimeout = time.Duration(conf.StreamOpenTimeoutSec) * time.Second
	cfg.EnableKeepAlive = conf.KeepAliveSec > 0
	if cfg.EnableKeepAlive {
		cfg.KeepAliveInterval = time.Duration(conf.KeepAliveSec) * time.Second
	}
	cfg.LogOutput = logWriter{}
	return cfg
}

// --------------------------------------------------------------------------
// Controller Methods
// --------------------------------------------------------------------------

// OpenStream opens a new logical stream. It fails with ConnectionClosed if
// the connection is gone.
func (c *Controller) OpenStream(ctx context.Context) (net.Conn, error) {
	if c.IsClosed() {
		return nil, common.NewError(common.KindConnectionClosed, "mux session is closed")
	}

	// yamux does not support a context for OpenStream, the orphaned stream is closed if ctx ends first
	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		s, err := c.session.OpenStream()
		select {
		case resultCh <- result{stream: s, err: err}:
		case <-ctx.Done():
			if s != nil {
				_ = s.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("open stream: %w", ctx.Err())
	case r := <-resultCh:
		if r.err != nil {
			streamErrors.Inc()
			if c.IsClosed() || errors.Is(r.err, yamux.ErrSessionShutdown) {
				return nil, common.NewError(common.KindConnectionClosed, "open stream: %v", r.err)
			}
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		streamsOpened.Inc()
		return r.stream, nil
	}
}

// Serve accepts inbound logical streams until the connection closes and runs
// handler for each of them in its own goroutine. Handler errors only end the
// stream they belong to. Serve returns nil when the connection was closed.
func (c *Controller) Serve(handler Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		stream, err := c.session.AcceptStream()
		if err != nil {
			if c.IsClosed() || errors.Is(err, yamux.ErrSessionShutdown) || errors.Is(err, io.EOF) {
				return nil
			}
			return common.NewError(common.KindConnectionClosed, "accept stream: %v", err)
		}
		streamsAccepted.Inc()

		go func(stream *yamux.Stream) {
			defer stream.Close()
			if err := handler(ctx, stream); err != nil {
				streamErrors.Inc()
				Logger.Warningf("stream %d on %s ended with error: %v", stream.StreamID(), c.RemoteAddr(), err)
			}
		}(stream)
	}
}

// Close closes the connection and all its logical streams
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.session.Close()
}

// Done is closed when the connection is closed
func (c *Controller) Done() <-chan struct{} {
	return c.session.CloseChan()
}

// IsClosed reports whether the connection is closed
func (c *Controller) IsClosed() bool {
	return c.closed.Load() || c.session.IsClosed()
}

// IsServer reports whether this is the accepting side
func (c *Controller) IsServer() bool {
	return c.isServer
}

// NumStreams returns the number of open logical streams
func (c *Controller) NumStreams() int {
	return c.session.NumStreams()
}

// RemoteAddr returns the address of the peer
func (c *Controller) RemoteAddr() net.Addr {
	return c.session.RemoteAddr()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// logWriter forwards the yamux log output to the package logger
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	Logger.Warningf("%s", strings.TrimSpace(string(p)))
	return len(p), nil
}

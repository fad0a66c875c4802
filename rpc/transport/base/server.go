package base

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/ValentinKolb/mKV/rpc/transport/mux"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// handshakeTimeout bounds the TLS handshake of a new connection
const handshakeTimeout = 10 * time.Second

var connectionsAccepted = metrics.NewCounter(`mkv_connections_accepted_total`)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig
	tlsConfig *tls.Config

	listenerMu sync.RWMutex
	listener   net.Listener
	closed     atomic.Bool

	// sessions holds the multiplexed connections by connection id
	sessions *xsync.MapOf[string, *mux.Controller]
	wg       sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport that multiplexes every accepted connection
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		sessions:  xsync.NewMapOf[string, *mux.Controller](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	tlsConfig, err := ServerTLSConfig(config.TLS)
	if err != nil {
		return err
	}
	t.tlsConfig = tlsConfig

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.listenerMu.Lock()
	if t.closed.Load() {
		t.listenerMu.Unlock()
		listener.Close()
		return nil
	}
	t.listener = listener
	t.listenerMu.Unlock()

	Logger.Infof("Starting %s server on %s (tls=%v)", t.connector.GetName(), listener.Addr(), tlsConfig != nil)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				t.wg.Wait()
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}
		connectionsAccepted.Inc()

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handleConnection(conn)
		}()
	}
}

func (t *serverTransport) Addr() net.Addr {
	t.listenerMu.RLock()
	defer t.listenerMu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenerMu.RLock()
	listener := t.listener
	t.listenerMu.RUnlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.sessions.Range(func(id string, session *mux.Controller) bool {
		_ = session.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection multiplexes one connection and serves its logical streams
func (t *serverTransport) handleConnection(conn net.Conn) {
	id := uuid.NewString()

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("Failed to upgrade connection %s from %s: %v", id, conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	if t.tlsConfig != nil {
		tlsConn := tls.Server(conn, t.tlsConfig)
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := tlsConn.HandshakeContext(ctx)
		cancel()
		if err != nil {
			Logger.Warningf("TLS handshake of connection %s from %s failed: %v", id, conn.RemoteAddr(), err)
			conn.Close()
			return
		}
		conn = tlsConn
	}

	session, err := mux.NewServer(conn, t.config.Mux)
	if err != nil {
		Logger.Errorf("Failed to create mux session for connection %s: %v", id, err)
		conn.Close()
		return
	}

	t.sessions.Store(id, session)
	defer func() {
		t.sessions.Delete(id)
		_ = session.Close()
	}()

	// the transport may have been closed while this connection was set up
	if t.closed.Load() {
		return
	}

	Logger.Debugf("Connection %s from %s established", id, conn.RemoteAddr())

	if err := session.Serve(mux.Handler(t.handler)); err != nil {
		Logger.Warningf("Connection %s from %s failed: %v", id, conn.RemoteAddr(), err)
		return
	}

	Logger.Debugf("Connection %s from %s closed", id, conn.RemoteAddr())
}

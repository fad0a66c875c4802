package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/mKV/lib/store/memtable"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

var (
	streamsHandled = metrics.NewCounter(`mkv_streams_handled_total`)
	streamsFailed  = metrics.NewCounter(`mkv_streams_failed_total`)
)

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:    config,
		transport: transport,
		codec:     frame.NewCodec(serializer, frame.OptionsFromConf(config.Frame)),
		service:   NewService(memtable.NewMemTable(), pubsub.NewBroadcaster()),
	}
}

// RPCServer serves the key value and publish/subscribe operations over a
// multiplexed transport. Every logical stream is processed by its own ServerStream.
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	codec     *frame.Codec
	service   *Service

	metricsMu sync.Mutex
	metrics   *http.Server
}

// Service returns the service executing the requests, e.g. to register hooks before Serve
func (s *RPCServer) Service() *Service {
	return s.service
}

// Serve initializes the loggers, starts the metrics endpoint (if configured)
// and serves the transport. It blocks until Close is called.
func (s *RPCServer) Serve() error {
	common.InitLoggers(s.config.LogLevel)
	Logger.Infof("created RPC server")
	Logger.Infof(s.config.String())

	if s.config.MetricsEndpoint != "" {
		if err := s.startMetrics(); err != nil {
			return err
		}
	}

	s.transport.RegisterHandler(s.handleStream)

	Logger.Infof("mKV setup completed successfully")
	return s.transport.Listen(s.config)
}

// Addr returns the address the server listens on (nil before Serve)
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Close stops the transport and the metrics endpoint
func (s *RPCServer) Close() error {
	var errs []error

	s.metricsMu.Lock()
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.metrics.Shutdown(ctx))
		cancel()
		s.metrics = nil
	}
	s.metricsMu.Unlock()

	errs = append(errs, s.transport.Close())
	return errors.Join(errs...)
}

// handleStream is invoked by the transport for every logical stream
func (s *RPCServer) handleStream(ctx context.Context, conn net.Conn) error {
	streamsHandled.Inc()
	err := NewServerStream(conn, s.codec, s.service, s.config.Timeout()).Process(ctx)
	if err != nil {
		streamsFailed.Inc()
	}
	return err
}

// startMetrics serves the metrics in prometheus text format on /metrics
func (s *RPCServer) startMetrics() error {
	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.metricsMu.Lock()
	s.metrics = srv
	s.metricsMu.Unlock()

	go func() {
		Logger.Infof("serving metrics on http://%s/metrics", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
	return nil
}

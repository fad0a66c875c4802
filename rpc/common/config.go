package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings (0 = OS default)
type SocketConf struct {
	WriteBufferSize int `toml:"write_buffer_size" mapstructure:"write_buffer_size"`
	ReadBufferSize  int `toml:"read_buffer_size" mapstructure:"read_buffer_size"`
}

// TCPConf holds TCP specific socket settings
type TCPConf struct {
	TCPNoDelay      bool `toml:"tcp_nodelay" mapstructure:"tcp_nodelay"`
	TCPKeepAliveSec int  `toml:"tcp_keepalive_sec" mapstructure:"tcp_keepalive_sec"`
	TCPLingerSec    int  `toml:"tcp_linger_sec" mapstructure:"tcp_linger_sec"` // < 0 = OS default
}

// TLSConf holds the file locations of the TLS identity. TLS is disabled when
// no certificate (server) or no domain and CA (client) is configured.
type TLSConf struct {
	CertFile           string `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile            string `toml:"key_file" mapstructure:"key_file"`
	CAFile             string `toml:"ca_file" mapstructure:"ca_file"`
	Domain             string `toml:"domain" mapstructure:"domain"` // client only: expected server name
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Enabled reports whether TLS should be used for a server
func (c TLSConf) Enabled() bool {
	return c.CertFile != ""
}

// ClientEnabled reports whether TLS should be used for a client
func (c TLSConf) ClientEnabled() bool {
	return c.Domain != "" || c.CAFile != "" || c.InsecureSkipVerify
}

// MuxConf configures the stream multiplexer of a connection.
// Zero values use the defaults of DefaultMuxConf.
type MuxConf struct {
	// AcceptBacklog limits the number of inbound streams waiting to be accepted
	AcceptBacklog int `toml:"accept_backlog" mapstructure:"accept_backlog"`
	// MaxStreamWindowSize is the per stream receive window in bytes. The
	// window is returned to the peer as soon as the consumer reads data, so
	// this bounds the bytes buffered for a slow reader.
	MaxStreamWindowSize uint32 `toml:"max_stream_window_size" mapstructure:"max_stream_window_size"`
	// KeepAliveSec enables keep alive pings in the given interval (0 = disabled)
	KeepAliveSec int `toml:"keepalive_sec" mapstructure:"keepalive_sec"`
	// WriteTimeoutSec bounds how long a write may block on the connection
	WriteTimeoutSec int `toml:"write_timeout_sec" mapstructure:"write_timeout_sec"`
	// StreamOpenTimeoutSec bounds how long opening a stream waits for the ack
	StreamOpenTimeoutSec int `toml:"stream_open_timeout_sec" mapstructure:"stream_open_timeout_sec"`
}

// DefaultMuxConf returns the default multiplexer configuration
func DefaultMuxConf() MuxConf {
	return MuxConf{
		AcceptBacklog:        256,
		MaxStreamWindowSize:  256 * 1024,
		KeepAliveSec:         30,
		WriteTimeoutSec:      10,
		StreamOpenTimeoutSec: 75,
	}
}

// WithDefaults returns a copy where every zero field is replaced by its default
func (c MuxConf) WithDefaults() MuxConf {
	d := DefaultMuxConf()
	if c.AcceptBacklog <= 0 {
		c.AcceptBacklog = d.AcceptBacklog
	}
	if c.MaxStreamWindowSize == 0 {
		c.MaxStreamWindowSize = d.MaxStreamWindowSize
	}
	if c.WriteTimeoutSec <= 0 {
		c.WriteTimeoutSec = d.WriteTimeoutSec
	}
	if c.StreamOpenTimeoutSec <= 0 {
		c.StreamOpenTimeoutSec = d.StreamOpenTimeoutSec
	}
	return c
}

// FrameConf configures the frame codec. Zero values use the wire defaults.
type FrameConf struct {
	// CompressionLimit is the serialized size in bytes above which payloads are gzip compressed
	CompressionLimit int `toml:"compression_limit" mapstructure:"compression_limit"`
	// MaxFrameSize is the largest accepted payload length in bytes
	MaxFrameSize int `toml:"max_frame_size" mapstructure:"max_frame_size"`
	// CompressionLevel is the gzip level (1 fastest .. 9 best, -2 huffman only)
	CompressionLevel int `toml:"compression_level" mapstructure:"compression_level"`
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the listener settings of the server
type ServerTransportConfig struct {
	Endpoint   string `toml:"endpoint" mapstructure:"endpoint"`
	SocketConf `toml:"socket" mapstructure:"socket"`
	TCPConf    `toml:"tcp" mapstructure:"tcp"`
}

// ServerConfig holds all configuration parameters for the server.
type ServerConfig struct {
	Transport ServerTransportConfig `toml:"transport" mapstructure:"transport"`
	TLS       TLSConf               `toml:"tls" mapstructure:"tls"`
	Mux       MuxConf               `toml:"mux" mapstructure:"mux"`
	Frame     FrameConf             `toml:"frame" mapstructure:"frame"`

	// I/O timeout for a logical stream (0 = none)
	TimeoutSecond int64 `toml:"timeout_second" mapstructure:"timeout_second"`

	// Address of the prometheus style metrics endpoint (empty = disabled)
	MetricsEndpoint string `toml:"metrics_endpoint" mapstructure:"metrics_endpoint"`

	// Logging configuration
	LogLevel string `toml:"log_level" mapstructure:"log_level"`
}

// DefaultServerConfig returns a config for a plaintext server on localhost
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: ServerTransportConfig{
			Endpoint: "127.0.0.1:9527",
			TCPConf:  TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
		Mux:      DefaultMuxConf(),
		LogLevel: "info",
	}
}

// Timeout returns the stream timeout as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// configPrinter collects sections and fields for the String methods
type configPrinter struct {
	sb strings.Builder
}

func (p *configPrinter) section(title string) {
	p.sb.WriteString("\n")
	p.sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func (p *configPrinter) field(name, value string) {
	p.sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func (p *configPrinter) mux(c MuxConf) {
	c = c.WithDefaults()
	p.section("Multiplexer")
	p.field("Accept Backlog", strconv.Itoa(c.AcceptBacklog))
	p.field("Stream Window", fmt.Sprintf("%d KB", c.MaxStreamWindowSize/1024))
	p.field("Keep Alive", fmt.Sprintf("%d sec", c.KeepAliveSec))
	p.field("Write Timeout", fmt.Sprintf("%d sec", c.WriteTimeoutSec))
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	p := &configPrinter{}

	// RPC settings
	p.section("RPC Server")
	p.field("Endpoint", c.Transport.Endpoint)
	p.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	p.field("TLS", strconv.FormatBool(c.TLS.Enabled()))
	if c.TLS.Enabled() {
		p.field("Certificate", c.TLS.CertFile)
		p.field("Client CA", c.TLS.CAFile)
	}

	p.mux(c.Mux)

	// Observability
	p.section("Logging")
	p.field("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		p.field("Metrics", c.MetricsEndpoint)
	}

	return p.sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the dial settings of the client
type ClientTransportConfig struct {
	Endpoints              []string `toml:"endpoints" mapstructure:"endpoints"`
	RetryCount             int      `toml:"retry_count" mapstructure:"retry_count"`
	ConnectionsPerEndpoint int      `toml:"connections_per_endpoint" mapstructure:"connections_per_endpoint"`
	SocketConf             `toml:"socket" mapstructure:"socket"`
	TCPConf                `toml:"tcp" mapstructure:"tcp"`
}

// ClientConfig holds all configuration parameters for the client
type ClientConfig struct {
	TimeoutSecond int                   `toml:"timeout_second" mapstructure:"timeout_second"`
	Transport     ClientTransportConfig `toml:"transport" mapstructure:"transport"`
	TLS           TLSConf               `toml:"tls" mapstructure:"tls"`
	Mux           MuxConf               `toml:"mux" mapstructure:"mux"`
	Frame         FrameConf             `toml:"frame" mapstructure:"frame"`
}

// DefaultClientConfig returns a config for a plaintext client on localhost
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TimeoutSecond: 10,
		Transport: ClientTransportConfig{
			Endpoints:              []string{"127.0.0.1:9527"},
			RetryCount:             3,
			ConnectionsPerEndpoint: 1,
			TCPConf:                TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
		Mux: DefaultMuxConf(),
	}
}

// Timeout returns the request timeout as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	p := &configPrinter{}

	// General Client Settings
	p.section("Client Configuration")
	p.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	p.field("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	p.field("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	p.field("TLS", strconv.FormatBool(c.TLS.ClientEnabled()))
	if c.TLS.Domain != "" {
		p.field("Server Name", c.TLS.Domain)
	}

	p.mux(c.Mux)

	// Endpoints
	p.section("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		p.field(strconv.Itoa(i), endpoint)
	}

	return p.sb.String()
}

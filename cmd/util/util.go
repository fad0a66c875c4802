package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/ValentinKolb/mKV/rpc/transport/tcp"
	"github.com/ValentinKolb/mKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// setupSharedFlags adds the flags shared by server and client commands
func setupSharedFlags(cmd *cobra.Command, socket common.SocketConf, tcpConf common.TCPConf, mux common.MuxConf) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, socket.WriteBufferSize/1024, WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, socket.ReadBufferSize/1024, WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, tcpConf.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, tcpConf.TCPKeepAliveSec, WrapString("The keepalive interval (in seconds, 0 = OS default, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, tcpConf.TCPLingerSec, WrapString("The linger time (in seconds, < 0 = OS default, only for tcp)"))

	key = "tls-cert"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the PEM encoded certificate (server: enables TLS, client: enables client authentication)"))

	key = "tls-key"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the PEM encoded private key of the certificate"))

	key = "tls-ca"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the PEM encoded CA (server: require client certificates signed by it, client: trust server certificates signed by it)"))

	key = "mux-window"
	cmd.PersistentFlags().Uint32(key, mux.MaxStreamWindowSize/1024, WrapString("Receive window per logical stream (in KB). The window is released as soon as data is read"))

	key = "mux-keepalive"
	cmd.PersistentFlags().Int(key, mux.KeepAliveSec, WrapString("Interval of the multiplexer keep alive pings (in seconds)"))

	key = "mux-backlog"
	cmd.PersistentFlags().Int(key, mux.AcceptBacklog, WrapString("Max number of inbound logical streams waiting to be accepted"))

	key = "compression-limit"
	cmd.PersistentFlags().Int(key, 0, WrapString("Serialized size (in bytes) above which frames are gzip compressed (0 = 1436)"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Largest accepted frame payload (in bytes, 0 = 2^31-1)"))
}

// SetupRPCServerFlags adds the server flags to a command
func SetupRPCServerFlags(cmd *cobra.Command) {
	d := common.DefaultServerConfig()

	key := "endpoint"
	cmd.PersistentFlags().String(key, d.Transport.Endpoint, WrapString("The address on which the server will listen (e.g. 0.0.0.0:9527, /tmp/mkv.sock, ...)"))

	key = "timeout"
	cmd.PersistentFlags().Int64(key, d.TimeoutSecond, WrapString("I/O timeout of a logical stream in seconds (0 = none)"))

	key = "metrics-endpoint"
	cmd.PersistentFlags().String(key, d.MetricsEndpoint, WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9528, empty = disabled)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, d.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	setupSharedFlags(cmd, d.Transport.SocketConf, d.Transport.TCPConf, d.Mux)
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	d := common.DefaultClientConfig()

	key := "timeout"
	cmd.PersistentFlags().Int(key, d.TimeoutSecond, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, strings.Join(d.Transport.Endpoints, ","), WrapString("The address of the mKV server. Multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, d.Transport.ConnectionsPerEndpoint, WrapString("Simultaneous multiplexed connections per endpoint"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, d.Transport.RetryCount, WrapString("How many times to retry opening a stream"))

	key = "tls-domain"
	cmd.PersistentFlags().String(key, "", WrapString("Expected server name of the server certificate (enables TLS)"))

	key = "tls-insecure"
	cmd.PersistentFlags().Bool(key, false, WrapString("Skip the verification of the server certificate (enables TLS, testing only)"))

	setupSharedFlags(cmd, d.Transport.SocketConf, d.Transport.TCPConf, d.Mux)
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads env files and initializes viper to read MKV_ prefixed environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("mkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// readConfigFile decodes the file given by --config (if any) into target.
// A separate viper instance is used so file sections never clash with flag names.
func readConfigFile(target interface{}) error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// The set* helpers override a config value if the flag was given or the env variable is set
func setString(key string, dst *string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(key string, dst *int) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setBool(key string, dst *bool) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func setKB(key string, dst *int) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key) * 1024
	}
}

// applySharedFlags applies the flags of setupSharedFlags
func applySharedFlags(socket *common.SocketConf, tcpConf *common.TCPConf, tls *common.TLSConf, mux *common.MuxConf, frame *common.FrameConf) {
	setKB("transport-write-buffer", &socket.WriteBufferSize)
	setKB("transport-read-buffer", &socket.ReadBufferSize)
	setBool("transport-tcp-nodelay", &tcpConf.TCPNoDelay)
	setInt("transport-tcp-keepalive", &tcpConf.TCPKeepAliveSec)
	setInt("transport-tcp-linger", &tcpConf.TCPLingerSec)
	setString("tls-cert", &tls.CertFile)
	setString("tls-key", &tls.KeyFile)
	setString("tls-ca", &tls.CAFile)
	if viper.IsSet("mux-window") {
		mux.MaxStreamWindowSize = viper.GetUint32("mux-window") * 1024
	}
	setInt("mux-keepalive", &mux.KeepAliveSec)
	setInt("mux-backlog", &mux.AcceptBacklog)
	setInt("compression-limit", &frame.CompressionLimit)
	setInt("max-frame-size", &frame.MaxFrameSize)
}

// GetServerConfig builds the server configuration from defaults, the config file, env variables and flags (in this order)
func GetServerConfig() (*common.ServerConfig, error) {
	conf := common.DefaultServerConfig()
	if err := readConfigFile(&conf); err != nil {
		return nil, err
	}

	setString("endpoint", &conf.Transport.Endpoint)
	if viper.IsSet("timeout") {
		conf.TimeoutSecond = viper.GetInt64("timeout")
	}
	setString("metrics-endpoint", &conf.MetricsEndpoint)
	setString("log-level", &conf.LogLevel)
	applySharedFlags(&conf.Transport.SocketConf, &conf.Transport.TCPConf, &conf.TLS, &conf.Mux, &conf.Frame)

	if _, err := common.ParseLogLevel(conf.LogLevel); err != nil {
		return nil, err
	}
	if conf.TLS.Enabled() && conf.TLS.KeyFile == "" {
		return nil, fmt.Errorf("a TLS certificate requires a key file (--tls-key)")
	}

	return &conf, nil
}

// GetClientConfig builds the client configuration from defaults, the config file, env variables and flags (in this order)
func GetClientConfig() (*common.ClientConfig, error) {
	conf := common.DefaultClientConfig()
	if err := readConfigFile(&conf); err != nil {
		return nil, err
	}

	setInt("timeout", &conf.TimeoutSecond)
	if viper.IsSet("transport-endpoints") {
		conf.Transport.Endpoints = strings.Split(viper.GetString("transport-endpoints"), ",")
	}
	setInt("transport-conn-per-endpoint", &conf.Transport.ConnectionsPerEndpoint)
	setInt("transport-retries", &conf.Transport.RetryCount)
	setString("tls-domain", &conf.TLS.Domain)
	setBool("tls-insecure", &conf.TLS.InsecureSkipVerify)
	applySharedFlags(&conf.Transport.SocketConf, &conf.Transport.TCPConf, &conf.TLS, &conf.Mux, &conf.Frame)

	return &conf, nil
}

// --------------------------------------------------------------------------
// Serializer and transport
// --------------------------------------------------------------------------

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	case "proto":
		return serializer.NewProtoSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the Client and the RPC store with composition pattern
type rpcClientAdapter struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
	codec     *frame.Codec
}

// newContext returns a context bounded by the configured timeout (none if the timeout is 0)
func (a *rpcClientAdapter) newContext() (context.Context, context.CancelFunc) {
	if a.config.TimeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), a.config.Timeout())
}

// openStream opens a new logical stream wrapped into a ClientStream
func (a *rpcClientAdapter) openStream(ctx context.Context) (*ClientStream, error) {
	conn, err := a.transport.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return NewClientStream(conn, a.codec), nil
}

// invokeRPCRequest is a helper function used for all unary requests
// It opens one logical stream, sends the request and reads exactly one response
// It returns the response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func (a *rpcClientAdapter) invokeRPCRequest(req *common.Message) (*common.Message, error) {
	ctx, cancel := a.newContext()
	defer cancel()

	stream, err := a.openStream(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.conn.SetDeadline(deadline)
	}

	resp, err := stream.ExecuteUnary(req)
	if err != nil {
		return nil, err
	}

	// Check if the response is an error response
	if err := resp.AsError(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// expectValues checks that a response carries n values
func expectValues(resp *common.Message, n int) error {
	if len(resp.Values) != n {
		return common.NewError(common.KindInternal, "%s response carries %d values, expected %d", resp.MsgType, len(resp.Values), n)
	}
	return nil
}

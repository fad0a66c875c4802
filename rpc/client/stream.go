package client

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
)

// ClientStream sends requests over one logical stream
type ClientStream struct {
	conn  net.Conn
	inner *frame.Stream
}

// NewClientStream wraps an opened logical stream
func NewClientStream(conn net.Conn, codec *frame.Codec) *ClientStream {
	return &ClientStream{
		conn:  conn,
		inner: frame.NewStream(conn, codec),
	}
}

// ExecuteUnary sends the request and reads exactly one response.
// Error responses are returned as messages, only transport and framing errors are errors.
func (s *ClientStream) ExecuteUnary(req *common.Message) (*common.Message, error) {
	if err := s.inner.SendAndFlush(req); err != nil {
		return nil, err
	}

	resp := &common.Message{}
	if err := s.inner.Recv(resp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, common.NewError(common.KindConnectionClosed, "stream closed before %s response", req.MsgType)
		}
		return nil, err
	}
	return resp, nil
}

// ExecuteStreaming sends a subscribe request and reads its first response,
// which must carry the subscription id. The stream is owned by the returned
// StreamResult afterwards.
func (s *ClientStream) ExecuteStreaming(req *common.Message) (*StreamResult, error) {
	first, err := s.ExecuteUnary(req)
	if err != nil {
		return nil, err
	}
	if err := first.AsError(); err != nil {
		return nil, err
	}
	if len(first.Values) == 0 {
		return nil, common.NewError(common.KindInternal, "invalid stream: first response carries no subscription id")
	}
	id, err := first.Values[0].AsInt()
	if err != nil {
		return nil, common.NewError(common.KindInternal, "invalid stream: %v", err)
	}

	// subscriptions live until they are removed, only the first response is bounded
	_ = s.conn.SetDeadline(time.Time{})

	return &StreamResult{ID: uint32(id), stream: s}, nil
}

// Close closes the logical stream
func (s *ClientStream) Close() error {
	return s.inner.Close()
}

// StreamResult is the response sequence of a subscription
type StreamResult struct {
	ID     uint32
	stream *ClientStream
}

// Next blocks until the next published response arrives.
// It returns io.EOF once the server ended the subscription.
func (r *StreamResult) Next() (*common.Message, error) {
	msg := &common.Message{}
	if err := r.stream.inner.Recv(msg); err != nil {
		return nil, err
	}
	if err := msg.AsError(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Close ends the subscription on this side. The server removes it lazily.
func (r *StreamResult) Close() error {
	return r.stream.Close()
}

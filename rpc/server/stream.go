package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/frame"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
)

// ServerStream processes the requests of one logical stream
type ServerStream struct {
	conn    net.Conn
	inner   *frame.Stream
	service *Service
	timeout time.Duration
}

// NewServerStream wraps a logical stream. timeout bounds every read of a
// request and every write of a response (0 = no timeout).
func NewServerStream(conn net.Conn, codec *frame.Codec, service *Service, timeout time.Duration) *ServerStream {
	return &ServerStream{
		conn:    conn,
		inner:   frame.NewStream(conn, codec),
		service: service,
		timeout: timeout,
	}
}

// Process reads requests until the client closes the stream and sends the
// responses of every request in order. A subscription occupies the stream
// until it is removed or the client goes away, the stream is closed afterwards.
// Framing and I/O errors end the stream and are returned.
func (s *ServerStream) Process(ctx context.Context) error {
	defer s.inner.Close()

	for {
		s.setDeadline(s.conn.SetReadDeadline)

		var req common.Message
		if err := s.inner.Recv(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.reject(err)
			return err
		}

		responses := s.service.Execute(&req)

		if sub, ok := responses.(*pubsub.Subscription); ok {
			return s.forward(ctx, sub)
		}

		if err := s.sendAll(ctx, responses); err != nil {
			return err
		}
	}
}

// forward sends the responses of a subscription until it ends.
// The client cancels a subscription by closing its side of the stream.
func (s *ServerStream) forward(ctx context.Context, sub *pubsub.Subscription) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer sub.Close()

	_ = s.conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		var discard common.Message
		for s.inner.Recv(&discard) == nil {
			Logger.Warningf("ignoring request on subscription stream %d", sub.ID)
		}
	}()

	for {
		msg, ok := sub.Next(ctx)
		if !ok {
			Logger.Debugf("subscription %d ended", sub.ID)
			return nil
		}
		if err := s.send(msg); err != nil {
			return err
		}
	}
}

// sendAll sends every response of a finite response sequence
func (s *ServerStream) sendAll(ctx context.Context, responses ResponseStream) error {
	defer responses.Close()
	for {
		msg, ok := responses.Next(ctx)
		if !ok {
			return nil
		}
		if err := s.send(msg); err != nil {
			return err
		}
	}
}

func (s *ServerStream) send(msg *common.Message) error {
	s.setDeadline(s.conn.SetWriteDeadline)
	if err := s.inner.SendAndFlush(msg); err != nil {
		return err
	}
	s.service.afterSend()
	return nil
}

// reject answers a request that could not be read with an error response.
// Nothing is sent if the connection itself failed.
func (s *ServerStream) reject(err error) {
	var protoErr *common.Error
	if !errors.As(err, &protoErr) {
		return
	}
	if protoErr.Kind == common.KindTruncatedFrame || protoErr.Kind == common.KindConnectionClosed {
		return
	}
	if sendErr := s.send(common.NewErrorResponse(common.MsgTUnknown, err)); sendErr != nil {
		Logger.Debugf("failed to send error response: %v", sendErr)
	}
}

func (s *ServerStream) setDeadline(set func(time.Time) error) {
	if s.timeout > 0 {
		_ = set(time.Now().Add(s.timeout))
	}
}

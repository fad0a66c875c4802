package server

import (
	"context"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
)

// IRPCServerAdapter handles unary requests.
// It takes a Message and a store as parameters and returns exactly one response.
// Storage errors are returned as error responses, never as panics.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}

// IRPCStreamAdapter handles publish/subscribe requests and returns their response sequence.
type IRPCStreamAdapter interface {
	HandleStream(req *common.Message, broadcaster *pubsub.Broadcaster) ResponseStream
}

// ResponseStream is the sequence of responses of one request.
// *pubsub.Subscription implements it for subscriptions.
type ResponseStream interface {
	// Next returns the next response, false once the sequence ended or ctx is done
	Next(ctx context.Context) (*common.Message, bool)
	// Close releases the sequence, it is safe to call Close more than once
	Close()
}

// --------------------------------------------------------------------------
// Single response sequence
// --------------------------------------------------------------------------

type onceStream struct {
	msg *common.Message
}

// Once returns a response sequence holding exactly msg
func Once(msg *common.Message) ResponseStream {
	return &onceStream{msg: msg}
}

func (s *onceStream) Next(ctx context.Context) (*common.Message, bool) {
	if s.msg == nil || ctx.Err() != nil {
		return nil, false
	}
	msg := s.msg
	s.msg = nil
	return msg, true
}

func (s *onceStream) Close() {
	s.msg = nil
}

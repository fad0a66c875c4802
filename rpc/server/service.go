package server

import (
	"fmt"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
	"github.com/VictoriaMetrics/metrics"
)

// Service executes requests against a store and a broadcaster.
//
// Hooks must be registered before the service is used, the registration
// methods are not safe for concurrent use. Execute is.
type Service struct {
	store       store.IStore
	broadcaster *pubsub.Broadcaster
	unary       IRPCServerAdapter
	streaming   IRPCStreamAdapter

	onReceived   []func(req *common.Message)
	onExecuted   []func(resp *common.Message)
	onBeforeSend []func(resp *common.Message)
	onAfterSend  []func()
}

// NewService creates a service for the given store and broadcaster
func NewService(s store.IStore, b *pubsub.Broadcaster) *Service {
	return &Service{
		store:       s,
		broadcaster: b,
		unary:       NewIStoreServerAdapter(),
		streaming:   NewPubSubServerAdapter(),
	}
}

// OnReceived registers a hook called with every decoded request
func (s *Service) OnReceived(f func(req *common.Message)) *Service {
	s.onReceived = append(s.onReceived, f)
	return s
}

// OnExecuted registers a hook called with every unary response
func (s *Service) OnExecuted(f func(resp *common.Message)) *Service {
	s.onExecuted = append(s.onExecuted, f)
	return s
}

// OnBeforeSend registers a hook that may modify every unary response before it is sent
func (s *Service) OnBeforeSend(f func(resp *common.Message)) *Service {
	s.onBeforeSend = append(s.onBeforeSend, f)
	return s
}

// OnAfterSend registers a hook called after every response was flushed
func (s *Service) OnAfterSend(f func()) *Service {
	s.onAfterSend = append(s.onAfterSend, f)
	return s
}

// Broadcaster returns the broadcaster of the service
func (s *Service) Broadcaster() *pubsub.Broadcaster {
	return s.broadcaster
}

// Execute classifies the request and returns its response sequence.
// Unary requests yield exactly one response, streaming requests are handed
// to the broadcaster. A request of unknown type yields an InvalidCommand response.
func (s *Service) Execute(req *common.Message) ResponseStream {
	Logger.Debugf("got request: %s", req)
	requestCounter(req.MsgType).Inc()

	for _, f := range s.onReceived {
		f(req)
	}

	if req.MsgType.IsStreaming() {
		return s.streaming.HandleStream(req, s.broadcaster)
	}

	var resp *common.Message
	if req.MsgType.IsUnary() {
		resp = s.unary.Handle(req, s.store)
	} else {
		resp = common.NewErrorResponse(req.MsgType, common.NewError(common.KindInvalidCommand, "request has no known type"))
	}
	if !resp.IsOk() {
		errorCounter(req.MsgType).Inc()
	}

	for _, f := range s.onExecuted {
		f(resp)
	}
	for _, f := range s.onBeforeSend {
		f(resp)
	}
	if len(s.onBeforeSend) > 0 {
		Logger.Debugf("modified response: %s", resp)
	}

	return Once(resp)
}

// afterSend runs the after-send hooks
func (s *Service) afterSend() {
	for _, f := range s.onAfterSend {
		f()
	}
}

func requestCounter(t common.MessageType) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`mkv_requests_total{type=%q}`, t))
}

func errorCounter(t common.MessageType) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`mkv_request_errors_total{type=%q}`, t))
}

package server

import (
	"fmt"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/pubsub"
)

func NewPubSubServerAdapter() IRPCStreamAdapter {
	return &pubSubServerAdapterImpl{}
}

type pubSubServerAdapterImpl struct{}

func (adapter *pubSubServerAdapterImpl) HandleStream(req *common.Message, broadcaster *pubsub.Broadcaster) ResponseStream {
	return DispatchStream(req, broadcaster)
}

// DispatchStream executes a publish, subscribe or unsubscribe request.
//
// publish answers with one ack, the delivery to subscribers is not awaited.
// subscribe answers with the subscription id, then with every published value.
// unsubscribe answers with one ok or SubscriptionNotFound response.
//
// Passing any other request is a programming error and panics.
func DispatchStream(req *common.Message, b *pubsub.Broadcaster) ResponseStream {
	switch req.MsgType {
	case common.MsgTPublish:
		b.Publish(req.Topic, req.Values)
		return Once(common.NewOkResponse(req.MsgType))

	case common.MsgTSubscribe:
		return b.Subscribe(req.Topic)

	case common.MsgTUnsubscribe:
		if _, err := b.Unsubscribe(req.Topic, req.SubID); err != nil {
			return Once(common.NewErrorResponse(req.MsgType, err))
		}
		return Once(common.NewOkResponse(req.MsgType))

	default:
		panic(fmt.Sprintf("streaming dispatch of %s request", req.MsgType))
	}
}

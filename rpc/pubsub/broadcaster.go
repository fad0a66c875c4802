package pubsub

import (
	"sync/atomic"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("pubsub")

// Capacity is the number of responses buffered per subscription
const Capacity = 128

// maxFanOut bounds the concurrent deliveries of one publish
const maxFanOut = 64

var (
	subscriptionsCreated = metrics.NewCounter(`mkv_pubsub_subscriptions_created_total`)
	subscriptionsRemoved = metrics.NewCounter(`mkv_pubsub_subscriptions_removed_total`)
	subscriptionsPruned  = metrics.NewCounter(`mkv_pubsub_subscriptions_pruned_total`)
	publishedMessages    = metrics.NewCounter(`mkv_pubsub_published_total`)
	deliveredMessages    = metrics.NewCounter(`mkv_pubsub_delivered_total`)
)

// nextSubscriptionID is shared by all broadcasters of the process, ids are never reused
var nextSubscriptionID atomic.Uint32

// topic is an immutable set of subscription ids. It is replaced on every change,
// so a loaded set can be iterated without holding any lock.
type topic = map[uint32]struct{}

// Broadcaster keeps track of topics and their subscriptions and fans out
// published values to all subscribers of a topic.
//
// Thread-safety: All methods are safe for concurrent use.
type Broadcaster struct {
	topics        *xsync.MapOf[string, topic]
	subscriptions *xsync.MapOf[uint32, *Subscription]
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		topics:        xsync.NewMapOf[string, topic](),
		subscriptions: xsync.NewMapOf[uint32, *Subscription](),
	}
}

// Subscribe creates a new subscription for the topic. The first response of the
// subscription carries its id as integer value, every later response carries
// the values of one publish.
func (b *Broadcaster) Subscribe(name string) *Subscription {
	id := nextSubscriptionID.Add(1)
	sub := newSubscription(id, name)

	// the channel is empty, this never blocks
	sub.ch <- common.NewValuesResponse(common.MsgTSubscribe, common.IntValue(int64(id)))

	b.subscriptions.Store(id, sub)
	b.topics.Compute(name, func(old topic, _ bool) (topic, bool) {
		next := make(topic, len(old)+1)
		for k := range old {
			next[k] = struct{}{}
		}
		next[id] = struct{}{}
		return next, false
	})

	subscriptionsCreated.Inc()
	Logger.Debugf("subscription %d to topic %q added", id, name)
	return sub
}

// Unsubscribe removes the subscription with the given id. The subscription's
// response sequence ends once the buffered responses are consumed.
// It returns common.ErrSubscriptionNotFound if the id is unknown or was removed before.
func (b *Broadcaster) Unsubscribe(name string, id uint32) (uint32, error) {
	if !b.removeSubscription(name, id) {
		return 0, common.NewError(common.KindSubscriptionNotFound, "subscription %d", id)
	}
	subscriptionsRemoved.Inc()
	return id, nil
}

// Publish delivers the values to every current subscriber of the topic.
// It returns immediately, the delivery happens in the background. Subscribers
// whose handle was closed are removed once all deliveries finished.
func (b *Broadcaster) Publish(name string, values []common.Value) {
	publishedMessages.Inc()

	// snapshot of the subscriber ids, the set itself is never mutated
	ids, ok := b.topics.Load(name)
	if !ok {
		Logger.Debugf("publish to topic %q without subscribers", name)
		return
	}

	msg := common.NewValuesResponse(common.MsgTSubscribe, values...)

	go func() {
		var g errgroup.Group
		g.SetLimit(maxFanOut)

		dead := xsync.NewMapOf[uint32, struct{}]()
		for id := range ids {
			sub, ok := b.subscriptions.Load(id)
			if !ok {
				continue
			}
			g.Go(func() error {
				if sub.deliver(msg) {
					deliveredMessages.Inc()
				} else {
					dead.Store(id, struct{}{})
				}
				return nil
			})
		}
		_ = g.Wait()

		dead.Range(func(id uint32, _ struct{}) bool {
			Logger.Warningf("publish to subscription %d failed, subscriber is gone", id)
			if b.removeSubscription(name, id) {
				subscriptionsPruned.Inc()
			}
			return true
		})
	}()
}

// HasTopic reports whether the topic has at least one subscriber
func (b *Broadcaster) HasTopic(name string) bool {
	_, ok := b.topics.Load(name)
	return ok
}

// SubscriberCount returns the number of subscriptions of a topic
func (b *Broadcaster) SubscriberCount(name string) int {
	ids, _ := b.topics.Load(name)
	return len(ids)
}

// Subscriptions returns the number of live subscriptions
func (b *Broadcaster) Subscriptions() int {
	return b.subscriptions.Size()
}

// removeSubscription removes the id from the topic (deleting the topic if it
// becomes empty) and from the subscription table. It reports whether the
// subscription existed on that topic.
func (b *Broadcaster) removeSubscription(name string, id uint32) bool {
	var found, deleted bool
	b.topics.Compute(name, func(old topic, loaded bool) (topic, bool) {
		if !loaded {
			return old, true
		}
		if _, found = old[id]; !found {
			return old, false
		}
		if len(old) == 1 {
			deleted = true
			return nil, true
		}
		next := make(topic, len(old)-1)
		for k := range old {
			if k != id {
				next[k] = struct{}{}
			}
		}
		return next, false
	})

	// an id of another topic stays subscribed there
	if !found {
		return false
	}
	if deleted {
		Logger.Infof("topic %q is deleted", name)
	}

	sub, ok := b.subscriptions.LoadAndDelete(id)
	if !ok {
		return false
	}
	sub.remove()

	Logger.Debugf("subscription %d is removed", id)
	return true
}

package pubsub

import (
	"context"
	"sync"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// Subscription is the receiving side of one subscriber.
// It is owned by the goroutine forwarding its responses to the client.
type Subscription struct {
	ID    uint32
	Topic string

	ch chan *common.Message

	// dropped is closed by the consumer (Close), gone by the broadcaster (remove)
	dropped  chan struct{}
	gone     chan struct{}
	dropOnce sync.Once
	goneOnce sync.Once
}

func newSubscription(id uint32, topic string) *Subscription {
	return &Subscription{
		ID:      id,
		Topic:   topic,
		ch:      make(chan *common.Message, Capacity),
		dropped: make(chan struct{}),
		gone:    make(chan struct{}),
	}
}

// Next blocks until the next response is available. The returned message is
// shared with other subscribers and must not be modified.
// It returns false if the subscription was removed (after all buffered
// responses were consumed) or ctx is done.
func (s *Subscription) Next(ctx context.Context) (*common.Message, bool) {
	// buffered responses take precedence over removal
	select {
	case msg := <-s.ch:
		return msg, true
	default:
	}

	select {
	case msg := <-s.ch:
		return msg, true
	case <-s.gone:
		select {
		case msg := <-s.ch:
			return msg, true
		default:
			return nil, false
		}
	case <-ctx.Done():
		return nil, false
	}
}

// Close drops the handle. The broadcaster removes the subscription lazily at
// the next publish to its topic.
func (s *Subscription) Close() {
	s.dropOnce.Do(func() { close(s.dropped) })
}

// Done is closed when the subscription was removed from the broadcaster
func (s *Subscription) Done() <-chan struct{} {
	return s.gone
}

// deliver blocks until the message is buffered. It returns false if the
// handle was dropped or the subscription removed.
func (s *Subscription) deliver(msg *common.Message) bool {
	select {
	case <-s.dropped:
		return false
	case <-s.gone:
		return false
	default:
	}

	select {
	case s.ch <- msg:
		return true
	case <-s.dropped:
		return false
	case <-s.gone:
		return false
	}
}

func (s *Subscription) remove() {
	s.goneOnce.Do(func() { close(s.gone) })
}

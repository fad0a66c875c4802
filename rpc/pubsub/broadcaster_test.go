package pubsub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// next reads the next response of a subscription or fails the test after a timeout
func next(t *testing.T, sub *Subscription) *common.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, ok := sub.Next(ctx)
	require.True(t, ok, "subscription %d ended unexpectedly", sub.ID)
	return msg
}

// readID reads the first response of a subscription and returns the id it carries
func readID(t *testing.T, sub *Subscription) uint32 {
	t.Helper()
	msg := next(t, sub)
	require.True(t, msg.IsOk())
	require.Len(t, msg.Values, 1)
	id, err := msg.Values[0].AsInt()
	require.NoError(t, err)
	return uint32(id)
}

func TestSubscribeSendsIDFirst(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe("lobby")

	assert.NotZero(t, sub.ID)
	assert.Equal(t, sub.ID, readID(t, sub))
	assert.True(t, b.HasTopic("lobby"))
	assert.Equal(t, 1, b.SubscriberCount("lobby"))
}

func TestPublishFanOut(t *testing.T) {
	b := NewBroadcaster()

	sub1 := b.Subscribe("lobby")
	sub2 := b.Subscribe("lobby")

	id1 := readID(t, sub1)
	id2 := readID(t, sub2)
	assert.NotEqual(t, id1, id2)

	b.Publish("lobby", []common.Value{common.StringValue("hello")})

	for _, sub := range []*Subscription{sub1, sub2} {
		msg := next(t, sub)
		require.Len(t, msg.Values, 1)
		assert.Equal(t, "hello", msg.Values[0].Str)
	}

	// after unsubscribing only the remaining subscriber receives data
	id, err := b.Unsubscribe("lobby", id1)
	require.NoError(t, err)
	assert.Equal(t, id1, id)

	b.Publish("lobby", []common.Value{common.StringValue("world")})

	msg := next(t, sub2)
	require.Len(t, msg.Values, 1)
	assert.Equal(t, "world", msg.Values[0].Str)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := sub1.Next(ctx)
	assert.False(t, ok, "removed subscription must end")
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Publish("nobody", []common.Value{common.IntValue(1)})
	assert.False(t, b.HasTopic("nobody"))
}

func TestUnsubscribeUnknownID(t *testing.T) {
	b := NewBroadcaster()

	_, err := b.Unsubscribe("lobby", 9527)
	require.ErrorIs(t, err, common.ErrSubscriptionNotFound)
	assert.Contains(t, err.Error(), "subscription 9527")
}

func TestUnsubscribeWrongTopic(t *testing.T) {
	b := NewBroadcaster()

	sub := b.Subscribe("lobby")
	id := readID(t, sub)

	_, err := b.Unsubscribe("other", id)
	require.ErrorIs(t, err, common.ErrSubscriptionNotFound)

	// the subscription is untouched and still receives data
	assert.Equal(t, 1, b.Subscriptions())
	assert.Equal(t, 1, b.SubscriberCount("lobby"))
	assert.False(t, b.HasTopic("other"))

	b.Publish("lobby", []common.Value{common.StringValue("hello")})
	msg := next(t, sub)
	require.Len(t, msg.Values, 1)
	assert.Equal(t, "hello", msg.Values[0].Str)

	_, err = b.Unsubscribe("lobby", id)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Subscriptions())
	assert.False(t, b.HasTopic("lobby"))
}

func TestDroppedSubscriberIsPruned(t *testing.T) {
	b := NewBroadcaster()

	sub := b.Subscribe("lobby")
	id := readID(t, sub)
	sub.Close()

	b.Publish("lobby", []common.Value{common.StringValue("hello")})

	require.Eventually(t, func() bool {
		return b.Subscriptions() == 0
	}, 5*time.Second, 10*time.Millisecond)

	_, err := b.Unsubscribe("lobby", id)
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)
	assert.False(t, b.HasTopic("lobby"))
}

func TestLastUnsubscribeDeletesTopic(t *testing.T) {
	b := NewBroadcaster()

	sub1 := b.Subscribe("lobby")
	sub2 := b.Subscribe("lobby")
	assert.Equal(t, 2, b.SubscriberCount("lobby"))

	_, err := b.Unsubscribe("lobby", sub1.ID)
	require.NoError(t, err)
	assert.True(t, b.HasTopic("lobby"))

	_, err = b.Unsubscribe("lobby", sub2.ID)
	require.NoError(t, err)
	assert.False(t, b.HasTopic("lobby"))

	// a stale unsubscribe of the same id
	_, err = b.Unsubscribe("lobby", sub2.ID)
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)
}

func TestConcurrentSubscribeUniqueIDs(t *testing.T) {
	b := NewBroadcaster()

	const n = 1000

	var mu sync.Mutex
	ids := make(map[uint32]struct{}, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := b.Subscribe(fmt.Sprintf("topic-%d", i%10))
			mu.Lock()
			ids[sub.ID] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.Equal(t, n, b.Subscriptions())
	for i := 0; i < 10; i++ {
		assert.Equal(t, n/10, b.SubscriberCount(fmt.Sprintf("topic-%d", i)))
	}
}

func TestSlowSubscriberReceivesEverything(t *testing.T) {
	b := NewBroadcaster()

	sub := b.Subscribe("lobby")
	readID(t, sub)

	// more publishes than the subscription can buffer
	const n = 2 * Capacity
	for i := 0; i < n; i++ {
		b.Publish("lobby", []common.Value{common.IntValue(int64(i))})
	}

	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		msg := next(t, sub)
		require.Len(t, msg.Values, 1)
		seen[msg.Values[0].Int] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestNextCanceled(t *testing.T) {
	b := NewBroadcaster()

	sub := b.Subscribe("lobby")
	readID(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}

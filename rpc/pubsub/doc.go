/*
Package pubsub implements the topic broadcaster of the server.

A Broadcaster holds two concurrent tables: topic name to the set of
subscription ids, and subscription id to its Subscription. Ids come from a
process wide counter starting at 1 and are never reused. A topic exists only
while it has at least one subscriber.

	b := pubsub.NewBroadcaster()
	sub := b.Subscribe("lobby")
	first, _ := sub.Next(ctx) // carries sub.ID as integer value
	b.Publish("lobby", []common.Value{common.StringValue("hello")})
	msg, _ := sub.Next(ctx)   // carries "hello"

Publish works on a copy of the subscriber set and delivers in the background.
Each subscription buffers up to Capacity responses, a full buffer blocks only
the delivery to that subscriber. A subscription whose handle was closed is
removed at the next publish to its topic.
*/
package pubsub

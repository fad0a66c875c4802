package client

import (
	"github.com/ValentinKolb/mKV/rpc/common"
)

// --------------------------------------------------------------------------
// Publish / Subscribe operations
// --------------------------------------------------------------------------

// Publish sends the values to all current subscribers of the topic.
// It returns once the server acknowledged the publish, not after delivery.
func (c *Client) Publish(topic string, values ...common.Value) error {
	_, err := c.invokeRPCRequest(common.NewPublishRequest(topic, values))
	return err
}

// Subscribe subscribes to the topic. The returned StreamResult carries the
// subscription id and yields every value published afterwards. It occupies a
// logical stream until it is closed or removed with Unsubscribe.
func (c *Client) Subscribe(topic string) (*StreamResult, error) {
	ctx, cancel := c.newContext()
	defer cancel()

	stream, err := c.openStream(ctx)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.conn.SetDeadline(deadline)
	}

	result, err := stream.ExecuteStreaming(common.NewSubscribeRequest(topic))
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	Logger.Debugf("subscribed to topic %q with id %d", topic, result.ID)
	return result, nil
}

// Unsubscribe removes a subscription, the server then ends its stream.
// It returns an error matching common.ErrSubscriptionNotFound for unknown ids.
func (c *Client) Unsubscribe(topic string, id uint32) error {
	_, err := c.invokeRPCRequest(common.NewUnsubscribeRequest(topic, id))
	return err
}

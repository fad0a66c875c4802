package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	publishCmd = &cobra.Command{
		Use:   "publish [topic] [value...]",
		Short: "Publishes values to all subscribers of a topic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]common.Value, 0, len(args)-1)
			for _, arg := range args[1:] {
				if viper.GetBool("string") {
					values = append(values, common.StringValue(arg))
				} else {
					values = append(values, common.ParseValue(arg))
				}
			}
			if err := rpcClient.Publish(args[0], values...); err != nil {
				return err
			}
			fmt.Println("published successfully")
			return nil
		},
	}
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [topic]",
		Short: "Subscribes to a topic and prints every published message",
		Long:  "Subscribes to a topic and prints the subscription id followed by every published message. The command ends when it is interrupted, the --count limit is reached or the subscription is removed (see unsubscribe).",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubscribe,
	}
	unsubscribeCmd = &cobra.Command{
		Use:   "unsubscribe [topic] [id]",
		Short: "Removes a subscription from a topic",
		Long:  "Removes a subscription using the topic and the id printed by the subscribe command. The stream of the subscriber ends.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("id must be a number: %w", err)
			}
			if err := rpcClient.Unsubscribe(args[0], uint32(id)); err != nil {
				return err
			}
			fmt.Println("unsubscribed successfully")
			return nil
		},
	}
)

// runSubscribe prints the messages of a subscription until it ends
func runSubscribe(_ *cobra.Command, args []string) error {
	topic := args[0]
	limit := viper.GetInt("count")

	sub, err := rpcClient.Subscribe(topic)
	if err != nil {
		return err
	}
	fmt.Printf("subscribed to %s (id=%d)\n", topic, sub.ID)

	// closing the stream unblocks Next
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	for received := 0; limit == 0 || received < limit; received++ {
		msg, err := sub.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			fmt.Println("subscription ended by server")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}

		parts := make([]string, len(msg.Values))
		for i, v := range msg.Values {
			parts[i] = v.String()
		}
		fmt.Printf("topic=%s, values=[%s]\n", topic, strings.Join(parts, ", "))
	}

	// leave the topic so the server does not keep the subscription
	if err := rpcClient.Unsubscribe(topic, sub.ID); err != nil && !errors.Is(err, common.ErrSubscriptionNotFound) {
		return err
	}
	return nil
}

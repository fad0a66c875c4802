package pubsub

import (
	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// PubSubCommands represents the publish/subscribe command group
	PubSubCommands = &cobra.Command{
		Use:                "pubsub",
		Short:              "Publish to and subscribe on topics",
		PersistentPreRunE:  setupPubSubClient,
		PersistentPostRunE: closePubSubClient,
	}
)

func init() {
	// Add common RPC flags to the pubsub command
	util.SetupRPCClientFlags(PubSubCommands)

	PubSubCommands.PersistentFlags().Bool("string", false, util.WrapString("Publish all values as strings instead of detecting integers, floats, booleans and 0x prefixed bytes"))

	// Add subcommands
	PubSubCommands.AddCommand(publishCmd)
	PubSubCommands.AddCommand(subscribeCmd)
	PubSubCommands.AddCommand(unsubscribeCmd)

	// Add flags specific to subscribe
	subscribeCmd.Flags().Int("count", 0, util.WrapString("Exit after receiving this many messages (0 = until interrupted or unsubscribed)"))
}

// setupPubSubClient initializes the RPC client
func setupPubSubClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.NewClient(*config, t, s)
	return err
}

// closePubSubClient closes the connections of the RPC client
func closePubSubClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}

package serve

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/server"
	"github.com/spf13/cobra"
)

var (
	serveCmdConfig *common.ServerConfig
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the mKV server",
		Long: `Start the mKV server with the specified configuration. The configuration is read from the config file (--config),
environment variables and command line flags, in increasing precedence. The format of the environment variables is
MKV_<flag> (e.g. MKV_TIMEOUT=15, MKV_TLS_CERT=server.pem)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupRPCServerFlags(ServeCmd)
}

// processConfig reads the configuration from the config file, the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	serveCmdConfig = conf
	return nil
}

// run starts the mKV server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- serv.Serve()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		server.Logger.Infof("shutting down")
		closeErr := serv.Close()
		return errors.Join(closeErr, <-done)
	}
}

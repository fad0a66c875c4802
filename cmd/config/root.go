package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/spf13/cobra"
)

var (
	// ConfigCommands represents the config command group
	ConfigCommands = &cobra.Command{
		Use:   "config",
		Short: "Generate and validate config files",
		Long:  "Generate config files holding the default configuration and validate existing ones. Config files are passed to other commands with --config.",
	}
	serverCmd = &cobra.Command{
		Use:   "server [file]",
		Short: "Write the default server configuration as toml (stdout if no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(args, common.DefaultServerConfig())
		},
	}
	clientCmd = &cobra.Command{
		Use:   "client [file]",
		Short: "Write the default client configuration as toml (stdout if no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(args, common.DefaultClientConfig())
		},
	}
	validateCmd = &cobra.Command{
		Use:   "validate [server|client] [file]",
		Short: "Check a toml config file for syntax errors and unknown keys",
		Args:  cobra.ExactArgs(2),
		RunE:  runValidate,
	}
)

func init() {
	ConfigCommands.AddCommand(serverCmd)
	ConfigCommands.AddCommand(clientCmd)
	ConfigCommands.AddCommand(validateCmd)
}

// writeConfig encodes conf to the file given in args or to stdout
func writeConfig(args []string, conf any) error {
	var w io.Writer = os.Stdout
	if len(args) == 1 {
		f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := toml.NewEncoder(w).Encode(conf); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if len(args) == 1 {
		fmt.Printf("wrote %s\n", args[0])
	}
	return nil
}

// runValidate decodes the file into the matching config struct and reports undecoded keys
func runValidate(_ *cobra.Command, args []string) error {
	var target fmt.Stringer
	switch args[0] {
	case "server":
		conf := common.DefaultServerConfig()
		target = &conf
	case "client":
		conf := common.DefaultClientConfig()
		target = &conf
	default:
		return fmt.Errorf("invalid config type %s (expected server or client)", args[0])
	}

	meta, err := toml.DecodeFile(args[1], target)
	if err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", args[1], strings.Join(keys, ", "))
	}

	fmt.Printf("%s is valid\n", args[1])
	fmt.Println(target.String())
	return nil
}

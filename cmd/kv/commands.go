package kv

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// parseValue converts a value argument, honoring the --string flag
func parseValue(s string) common.Value {
	if viper.GetBool("string") {
		return common.StringValue(s)
	}
	return common.ParseValue(s)
}

// parsePairs converts key=value arguments into pairs
func parsePairs(args []string) ([]common.Kvpair, error) {
	pairs := make([]common.Kvpair, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q (expected key=value)", arg)
		}
		pairs = append(pairs, common.NewKvpair(key, parseValue(value)))
	}
	return pairs, nil
}

var (
	getCmd = &cobra.Command{
		Use:   "get [table] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, key := args[0], args[1]
			if value, err := rpcClient.Get(table, key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, kind=%s, value=%s\n", key, value.Kind, value)
			}
			return nil
		},
	}
	getAllCmd = &cobra.Command{
		Use:   "getall [table]",
		Short: "Reads all key value pairs of a table (sorted by key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := rpcClient.GetAll(args[0])
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				fmt.Println(pair)
			}
			fmt.Printf("(%d pairs)\n", len(pairs))
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [table] [key...]",
		Short: "Reads the values for multiple keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args[1:]
			values, err := rpcClient.MGet(args[0], keys...)
			if err != nil {
				return err
			}
			for i, value := range values {
				fmt.Printf("key=%s, found=%t, value=%s\n", keys[i], !value.IsNone(), value)
			}
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [table] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if old, err := rpcClient.Set(args[0], args[1], parseValue(args[2])); err != nil {
				return err
			} else {
				fmt.Printf("set successfully (old=%s)\n", old)
			}
			return nil
		},
	}
	msetCmd = &cobra.Command{
		Use:   "mset [table] [key=value...]",
		Short: "Sets the values for multiple keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(args[1:])
			if err != nil {
				return err
			}
			olds, err := rpcClient.MSet(args[0], pairs...)
			if err != nil {
				return err
			}
			for i, old := range olds {
				fmt.Printf("key=%s, old=%s\n", pairs[i].Key, old)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [table] [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if old, err := rpcClient.Del(args[0], args[1]); err != nil {
				return err
			} else {
				fmt.Printf("delete successfully (old=%s)\n", old)
			}
			return nil
		},
	}
	mdelCmd = &cobra.Command{
		Use:   "mdel [table] [key...]",
		Short: "Deletes multiple key value pairs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args[1:]
			olds, err := rpcClient.MDel(args[0], keys...)
			if err != nil {
				return err
			}
			for i, old := range olds {
				fmt.Printf("key=%s, deleted=%t, old=%s\n", keys[i], !old.IsNone(), old)
			}
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [table] [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if found, err := rpcClient.Exists(args[0], args[1]); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t\n", args[1], found)
			}
			return nil
		},
	}
	mexistsCmd = &cobra.Command{
		Use:   "mexists [table] [key...]",
		Short: "Checks if multiple keys exist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args[1:]
			found, err := rpcClient.MExists(args[0], keys...)
			if err != nil {
				return err
			}
			for i, ok := range found {
				fmt.Printf("key=%s, found=%t\n", keys[i], ok)
			}
			return nil
		},
	}
)

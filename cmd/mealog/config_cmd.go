package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mealog/internal/config"
	"mealog/internal/format"
)

const hiddenSecret = "(hidden)"

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get, set or show configuration",
	}

	cmd.AddCommand(newConfigGetCmd(cfg))
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigShowCmd(cfg))
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  requireExactlyArgs(1, "key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			if config.IsSecretKey(key) && value != "" && !reveal {
				value = hiddenSecret
			}
			return writePlain("%s\n", value)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value in the config file",
		Args:  requireExactlyArgs(2, "key and value are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GlobalPath()
			if err != nil {
				return err
			}
			return config.SetKey(path, args[0], args[1])
		},
	}
}

// newConfigShowCmd prints the effective configuration. Secrets never appear
// in the output because their fields are excluded from JSON and YAML.
func newConfigShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatter
			if formatter == nil {
				formatter = format.YAMLFormatter{}
			}
			return formatter.Write(os.Stdout, cfg)
		},
	}
}

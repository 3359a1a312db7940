package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealog/internal/config"
	"mealog/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string
	var outputFormat string

	cmd := &cobra.Command{
		Use:           "mealog",
		Short:         "Mealog keeps a meal diary with photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			if outputFormat == "" {
				outputFormatter = nil
				return nil
			}
			formatter, err := format.ByName(outputFormat)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "", "structured output format (json or yaml)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg),
		newUserCmd(cfg),
		newImageCmd(cfg),
		newMealCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}

// Package cmd wires the panelsync subcommands together.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stellarfrp/panelsync/cmd/schema"
	"github.com/stellarfrp/panelsync/cmd/traffic"
	"github.com/stellarfrp/panelsync/cmd/users"
	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "panelsync",
		Short: "StellarFrp account reconciliation and traffic consolidation tool",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		users.Command(settings),
		traffic.Command(settings),
		schema.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Sync the settings struct with viper so command line arguments
		// take precedence over config file values
		settings.Debug = viper.GetBool("debug")
		settings.Migration.BatchSize = viper.GetInt("migration.batchsize")

		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}

		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().IntVar(&settings.Migration.BatchSize, "batch-size", viper.GetInt("migration.batchsize"), "Number of legacy rows fetched per batch")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("migration.batchsize", rootCmd.PersistentFlags().Lookup("batch-size")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

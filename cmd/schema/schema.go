// Package schema provides the schema cleanup command for panelsync
package schema

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/datastore"
)

// Command creates and returns the schema command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Drop the deprecated is_increment column from node_traffic_log",
		Long: `Checks whether the deprecated is_increment column still exists on
node_traffic_log and removes it. Safe to re-run: once the column is
gone the command does nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(settings)
		},
	}
}

func runSchema(settings *conf.Settings) error {
	target := datastore.NewTarget(&settings.Target)
	if err := target.Open(); err != nil {
		return fmt.Errorf("schema cleanup failed: %w", err)
	}
	defer func() { _ = target.Close() }()

	dropped, err := target.DropIncrementColumn()
	if err != nil {
		return fmt.Errorf("schema cleanup failed: %w", err)
	}

	if dropped {
		fmt.Println("Dropped deprecated is_increment column from node_traffic_log")
	} else {
		fmt.Println("No deprecated columns found, nothing to do")
	}
	return nil
}

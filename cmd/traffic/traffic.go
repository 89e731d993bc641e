// Package traffic provides the traffic consolidation command for panelsync
package traffic

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/consolidate"
	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/logging"
)

// operationTimeout bounds a full consolidation run.
const operationTimeout = 30 * time.Minute

// Command creates and returns the traffic command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "traffic",
		Short: "Consolidate per-node traffic history into one row per node",
		Long: `Folds the dated traffic rows of every tunnel node into a single
cumulative row at the latest observed date and deletes the superseded
rows. The run is all-or-nothing and safe to repeat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraffic(settings)
		},
	}
}

func runTraffic(settings *conf.Settings) error {
	target := datastore.NewTarget(&settings.Target)
	if err := target.Open(); err != nil {
		return fmt.Errorf("traffic consolidation failed: %w", err)
	}
	defer func() { _ = target.Close() }()

	consolidator := consolidate.New(&consolidate.Config{
		Target: target,
		Logger: logging.ForService("consolidate"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	result, err := consolidator.Run(ctx)
	if err != nil {
		return fmt.Errorf("traffic consolidation failed: %w", err)
	}

	fmt.Printf("Consolidated %d nodes, removed %d superseded records\n", result.Consolidated, result.Removed)
	return nil
}

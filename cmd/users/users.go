// Package users provides the user migration command for panelsync
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/logging"
	"github.com/stellarfrp/panelsync/internal/migration"
)

// operationTimeout bounds a full reconciliation run.
const operationTimeout = 30 * time.Minute

// Command creates and returns the users command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Migrate legacy accounts into the panel database",
		Long: `Reconciles every account in the legacy user database into the panel
database and voids panel tokens issued by the compromised legacy panel.
The run is all-or-nothing: on any error the panel database is left
exactly as it was.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsers(settings)
		},
	}
}

func runUsers(settings *conf.Settings) error {
	source := datastore.NewSource(&settings.Source)
	if err := source.Open(); err != nil {
		return fmt.Errorf("user migration failed: %w", err)
	}
	defer func() { _ = source.Close() }()

	target := datastore.NewTarget(&settings.Target)
	if err := target.Open(); err != nil {
		return fmt.Errorf("user migration failed: %w", err)
	}
	defer func() { _ = target.Close() }()

	migrator := migration.New(&migration.Config{
		Source:         source,
		Target:         target,
		Logger:         logging.ForService("migration"),
		BatchSize:      settings.Migration.BatchSize,
		BadTokenPrefix: settings.Migration.BadTokenPrefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	result, err := migrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("user migration failed: %w", err)
	}

	fmt.Printf("Migrated %d users, cleaned %d tokens\n", result.Migrated, result.TokensCleaned)
	return nil
}

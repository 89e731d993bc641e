package datastore

import (
	"time"

	"github.com/stellarfrp/panelsync/internal/errors"
)

// EnsureSchema creates the panel tables if they are missing. Used for
// SQLite deployments and tests; the MySQL panel schema is managed by the
// panel itself.
func (s *TargetStore) EnsureSchema() error {
	tableMappings := []struct {
		model any
		name  string
	}{
		{&User{}, "users"},
		{&NodeTrafficLog{}, "node_traffic_log"},
	}

	for _, table := range tableMappings {
		tableStart := time.Now()
		tableExists := s.db.Migrator().HasTable(table.model)

		if err := s.db.AutoMigrate(table.model); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryQuery).
				Context("operation", "ensure_schema").
				Context("table", table.name).
				Build()
		}

		action := "unchanged"
		if !tableExists {
			action = "created"
		}
		s.log.Debug("table migration completed",
			"table", table.name,
			"action", action,
			"duration", time.Since(tableStart))
	}

	return nil
}

// incrementColumn is the deprecated flag column dropped by the schema
// cleanup operation. Early traffic reporting wrote both incremental and
// total rows; only totals remain.
const incrementColumn = "is_increment"

// DropIncrementColumn removes the deprecated is_increment column from
// node_traffic_log if it is still present. Returns whether the column was
// dropped. Safe to re-run: a second call finds nothing to drop.
func (s *TargetStore) DropIncrementColumn() (bool, error) {
	migrator := s.db.Migrator()

	if !migrator.HasTable(&NodeTrafficLog{}) {
		return false, nil
	}
	if !migrator.HasColumn(&NodeTrafficLog{}, incrementColumn) {
		return false, nil
	}

	if err := migrator.DropColumn(&NodeTrafficLog{}, incrementColumn); err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryQuery).
			Context("operation", "drop_increment_column").
			Context("table", "node_traffic_log").
			Build()
	}

	s.log.Info("dropped deprecated column",
		"table", "node_traffic_log",
		"column", incrementColumn)
	return true, nil
}

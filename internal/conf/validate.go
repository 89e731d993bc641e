package conf

import (
	"github.com/stellarfrp/panelsync/internal/errors"
)

// ValidateSettings checks the loaded settings before any database
// connection is attempted.
func ValidateSettings(settings *Settings) error {
	if err := validateStore(&settings.Source, "source"); err != nil {
		return err
	}
	if err := validateStore(&settings.Target, "target"); err != nil {
		return err
	}

	if settings.Migration.BatchSize <= 0 {
		return errors.Newf("migration batch size must be positive, got %d", settings.Migration.BatchSize).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("batch_size", settings.Migration.BatchSize).
			Build()
	}

	return nil
}

// validateStore checks that exactly one backend is enabled for a store and
// that the enabled backend has the fields it needs.
func validateStore(store *StoreSettings, name string) error {
	switch {
	case store.SQLite.Enabled && store.MySQL.Enabled:
		return storeError(name, "both sqlite and mysql are enabled, enable exactly one")
	case !store.SQLite.Enabled && !store.MySQL.Enabled:
		return storeError(name, "no database backend enabled")
	case store.SQLite.Enabled && store.SQLite.Path == "":
		return storeError(name, "sqlite path is empty")
	case store.MySQL.Enabled:
		m := &store.MySQL
		if m.Username == "" || m.Database == "" || m.Host == "" || m.Port == "" {
			return storeError(name, "mysql settings require username, database, host and port")
		}
	}
	return nil
}

func storeError(store, message string) error {
	return errors.Newf("%s store: %s", store, message).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("store", store).
		Build()
}

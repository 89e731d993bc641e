package datastore

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/logging"
)

// TargetStore implements Target against the panel database.
type TargetStore struct {
	DataStore
	Settings *conf.StoreSettings
	log      *slog.Logger
}

// NewTarget creates a target store from the given settings.
func NewTarget(settings *conf.StoreSettings) *TargetStore {
	return &TargetStore{
		Settings: settings,
		log:      logging.ForService("datastore"),
	}
}

// NewTargetFromDB wraps an already open database handle, used by tests.
func NewTargetFromDB(db *gorm.DB) *TargetStore {
	return &TargetStore{
		DataStore: DataStore{db: db},
		log:       logging.Discard(),
	}
}

// Open sets up the panel database connection. On a SQLite backend the
// schema is created if missing; a MySQL panel database owns its own schema
// and is never altered here.
func (s *TargetStore) Open() error {
	db, err := openStore(s.Settings, "target", s.log)
	if err != nil {
		return err
	}
	s.db = db

	if s.Settings.SQLite.Enabled {
		if err := s.EnsureSchema(); err != nil {
			_ = s.Close()
			return err
		}
	}
	return nil
}

// Transaction runs fc inside a single database transaction.
func (s *TargetStore) Transaction(ctx context.Context, fc func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fc)
}

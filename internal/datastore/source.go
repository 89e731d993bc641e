package datastore

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/errors"
	"github.com/stellarfrp/panelsync/internal/logging"
)

// SourceStore implements Source against the legacy account database. All
// access is read-only; the legacy store is never mutated.
type SourceStore struct {
	DataStore
	Settings *conf.StoreSettings
	log      *slog.Logger
}

// NewSource creates a source store from the given settings.
func NewSource(settings *conf.StoreSettings) *SourceStore {
	return &SourceStore{
		Settings: settings,
		log:      logging.ForService("datastore"),
	}
}

// NewSourceFromDB wraps an already open database handle, used by tests.
func NewSourceFromDB(db *gorm.DB) *SourceStore {
	return &SourceStore{
		DataStore: DataStore{db: db},
		log:       logging.Discard(),
	}
}

// Open sets up the legacy database connection.
func (s *SourceStore) Open() error {
	db, err := openStore(s.Settings, "source", s.log)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// UsersAfter returns up to limit legacy accounts with ID greater than
// afterID, ordered by ID ascending.
func (s *SourceStore) UsersAfter(ctx context.Context, afterID uint64, limit int) ([]LegacyUser, error) {
	var users []LegacyUser
	err := s.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryQuery).
			Context("operation", "fetch_legacy_users").
			Context("after_id", afterID).
			Build()
	}
	return users, nil
}

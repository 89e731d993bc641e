// interfaces.go: this code defines the interfaces for the database operations
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/errors"
)

// Source abstracts the legacy account database. It is read-only.
type Source interface {
	Open() error
	Close() error
	// UsersAfter returns up to limit legacy accounts with ID greater than
	// afterID, ordered by ID ascending. An empty slice means the scan is
	// complete.
	UsersAfter(ctx context.Context, afterID uint64, limit int) ([]LegacyUser, error)
}

// Target abstracts the panel database being reconciled into.
type Target interface {
	Open() error
	Close() error
	DB() *gorm.DB
	// Transaction runs fc inside a single database transaction; any error
	// returned by fc rolls the whole transaction back.
	Transaction(ctx context.Context, fc func(tx *gorm.DB) error) error
	// DropIncrementColumn removes the deprecated is_increment column from
	// node_traffic_log if it is still present. Safe to re-run.
	DropIncrementColumn() (bool, error)
}

// DataStore holds a GORM database handle shared by the concrete stores.
type DataStore struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance.
func (ds *DataStore) DB() *gorm.DB {
	return ds.db
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.db == nil {
		return errors.NewStd("database connection is not initialized")
	}
	sqlDB, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	ds.db = nil
	return nil
}

// slowQueryThreshold defines the duration after which a query is considered
// slow. One second accommodates full-table reconciliation batch queries.
const slowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(log *slog.Logger) gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// openStore opens a GORM connection for the enabled backend of a store.
func openStore(settings *conf.StoreSettings, name string, log *slog.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: createGormLogger(log)}

	var db *gorm.DB
	var err error
	switch {
	case settings.SQLite.Enabled:
		db, err = gorm.Open(sqlite.Open(settings.SQLite.Path), gormConfig)
		if err != nil {
			return nil, errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
				Component("datastore").
				Category(errors.CategoryConnection).
				Context("store", name).
				Context("path", settings.SQLite.Path).
				Build()
		}
	case settings.MySQL.Enabled:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			settings.MySQL.Username, settings.MySQL.Password,
			settings.MySQL.Host, settings.MySQL.Port,
			settings.MySQL.Database)
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return nil, errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
				Component("datastore").
				Category(errors.CategoryConnection).
				Context("store", name).
				Context("host", settings.MySQL.Host).
				Context("database", settings.MySQL.Database).
				Build()
		}
	default:
		return nil, errors.Newf("no database backend enabled for %s store", name).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log.Debug("database connection initialized", "store", name)
	return db, nil
}

// Package migration reconciles legacy user accounts into the panel
// database and voids tokens issued by the compromised legacy panel.
package migration

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/errors"
)

// Migrator performs a full reconciliation of legacy accounts into the
// panel database. The whole run executes inside one target transaction:
// either every account is reconciled and every bad token voided, or the
// panel database is left untouched.
type Migrator struct {
	source         datastore.Source
	target         datastore.Target
	log            *slog.Logger
	batchSize      int
	badTokenPrefix string
	now            func() time.Time
}

// Config configures the migrator.
type Config struct {
	Source         datastore.Source
	Target         datastore.Target
	Logger         *slog.Logger
	BatchSize      int
	BadTokenPrefix string
	// Now supplies the evaluation time; defaults to time.Now.
	Now func() time.Time
}

// New creates a new migrator.
func New(cfg *Config) *Migrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = conf.DefaultBatchSize
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Migrator{
		source:         cfg.Source,
		target:         cfg.Target,
		log:            log,
		batchSize:      batchSize,
		badTokenPrefix: cfg.BadTokenPrefix,
		now:            now,
	}
}

// Result reports what a successful run did.
type Result struct {
	// Migrated counts every legacy account processed, whether it was
	// inserted or updated.
	Migrated int
	// TokensCleaned counts panel tokens voided by the hygiene pass.
	TokensCleaned int
}

// Run reconciles every legacy account and then voids bad tokens, all
// inside a single target transaction. On error nothing is committed.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	start := m.now()
	var result Result

	err := m.target.Transaction(ctx, func(tx *gorm.DB) error {
		evalTime := m.now()

		migrated, err := m.reconcileUsers(ctx, tx, evalTime)
		if err != nil {
			return err
		}
		result.Migrated = migrated

		cleaned, err := sanitizeTokens(tx, m.badTokenPrefix)
		if err != nil {
			return err
		}
		result.TokensCleaned = cleaned

		return nil
	})
	if err != nil {
		return Result{}, errors.New(err).
			Component("migration").
			Category(errors.CategoryMigration).
			Context("operation", "user_migration").
			Build()
	}

	m.log.Info("user migration completed",
		"migrated", result.Migrated,
		"tokens_cleaned", result.TokensCleaned,
		"duration", time.Since(start))
	return result, nil
}

// reconcileUsers consumes the legacy account scan in batches and upserts
// each account into the panel database.
func (m *Migrator) reconcileUsers(ctx context.Context, tx *gorm.DB, evalTime time.Time) (int, error) {
	var migrated int
	var lastID uint64

	for {
		batch, err := m.source.UsersAfter(ctx, lastID, m.batchSize)
		if err != nil {
			return 0, err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			legacy := &batch[i]
			if err := m.reconcileUser(tx, legacy, evalTime); err != nil {
				return 0, err
			}
			migrated++
			lastID = legacy.ID
		}

		if len(batch) < m.batchSize {
			break
		}
	}

	return migrated, nil
}

// reconcileUser upserts a single legacy account. The panel row is looked
// up by username: existing rows are updated in place with the classified
// group and sanitized fields, missing rows are created with all counters
// zeroed and an empty token.
func (m *Migrator) reconcileUser(tx *gorm.DB, legacy *datastore.LegacyUser, evalTime time.Time) error {
	accountType := sanitizeText(legacy.Type)
	groupID, groupTime := Classify(accountType, legacy.VIPTime, legacy.IsVerified != 0, evalTime)
	email := sanitizeText(legacy.Email)
	verifyInfo := sanitizeText(legacy.EncryptedIdentityInfo)

	var existing datastore.User
	err := tx.Where("username = ?", legacy.Username).First(&existing).Error
	switch {
	case err == nil:
		return m.updateUser(tx, legacy, groupID, groupTime, email, verifyInfo, evalTime)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return m.insertUser(tx, legacy, groupID, groupTime, email, verifyInfo, evalTime)
	default:
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryQuery).
			Context("operation", "lookup_user").
			Context("username", legacy.Username).
			Build()
	}
}

// updateUser refreshes an existing panel account from its legacy record.
// The token column is deliberately absent from the update: a token issued
// by the panel survives reconciliation. The group expiry is always
// written, including NULL, so a lapsed VIP cannot keep a stale expiry.
func (m *Migrator) updateUser(tx *gorm.DB, legacy *datastore.LegacyUser, groupID int64, groupTime *time.Time, email, verifyInfo string, evalTime time.Time) error {
	updates := map[string]any{
		"password":     legacy.Password,
		"email":        email,
		"group_id":     groupID,
		"group_time":   groupTime,
		"verify_info":  verifyInfo,
		"is_verified":  legacy.IsVerified,
		"verify_count": legacy.AuthCount,
		"status":       datastore.UserStatusEnabled,
		"updated_at":   evalTime,
	}

	err := tx.Model(&datastore.User{}).
		Where("username = ?", legacy.Username).
		Updates(updates).Error
	if err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryQuery).
			Context("operation", "update_user").
			Context("username", legacy.Username).
			Build()
	}

	m.log.Debug("updated user", "username", legacy.Username, "group_id", groupID)
	return nil
}

// insertUser creates a new panel account from its legacy record. Counters
// default to zero and the token stays empty until the panel issues one.
// The register and creation timestamps carry over from the legacy record,
// falling back to the evaluation time when the legacy store has none.
func (m *Migrator) insertUser(tx *gorm.DB, legacy *datastore.LegacyUser, groupID int64, groupTime *time.Time, email, verifyInfo string, evalTime time.Time) error {
	registerTime := evalTime
	if legacy.CreatedAt != nil && !legacy.CreatedAt.IsZero() {
		registerTime = *legacy.CreatedAt
	}

	user := datastore.User{
		Username:     legacy.Username,
		Password:     legacy.Password,
		Email:        email,
		RegisterTime: registerTime,
		GroupID:      groupID,
		IsVerified:   legacy.IsVerified,
		VerifyInfo:   verifyInfo,
		VerifyCount:  legacy.AuthCount,
		Status:       datastore.UserStatusEnabled,
		GroupTime:    groupTime,
		CreatedAt:    registerTime,
		UpdatedAt:    evalTime,
	}

	if err := tx.Create(&user).Error; err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryQuery).
			Context("operation", "insert_user").
			Context("username", legacy.Username).
			Build()
	}

	m.log.Debug("inserted user", "username", legacy.Username, "group_id", groupID)
	return nil
}

package migration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/errors"
	"github.com/stellarfrp/panelsync/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// evalTime is the fixed evaluation time injected into every migrator under
// test, so classification and written timestamps are deterministic.
var evalTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string {
	return &s
}

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newSourceStore(t *testing.T, users ...datastore.LegacyUser) *datastore.SourceStore {
	t.Helper()
	db := newTestDB(t, "legacy.db")
	require.NoError(t, db.AutoMigrate(&datastore.LegacyUser{}))
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}
	return datastore.NewSourceFromDB(db)
}

func newTargetStore(t *testing.T) *datastore.TargetStore {
	t.Helper()
	db := newTestDB(t, "panel.db")
	store := datastore.NewTargetFromDB(db)
	require.NoError(t, store.EnsureSchema())
	return store
}

func newTestMigrator(source datastore.Source, target datastore.Target) *Migrator {
	return New(&Config{
		Source:         source,
		Target:         target,
		Logger:         logging.Discard(),
		BadTokenPrefix: "legacy-",
		Now:            func() time.Time { return evalTime },
	})
}

func fetchUser(t *testing.T, target *datastore.TargetStore, username string) datastore.User {
	t.Helper()
	var user datastore.User
	require.NoError(t, target.DB().Where("username = ?", username).First(&user).Error)
	return user
}

func countUsers(t *testing.T, target *datastore.TargetStore) int64 {
	t.Helper()
	var count int64
	require.NoError(t, target.DB().Model(&datastore.User{}).Count(&count).Error)
	return count
}

func TestMigratorRun_InsertsNewAccount(t *testing.T) {
	expiry := evalTime.Add(30 * 24 * time.Hour)
	registered := evalTime.Add(-365 * 24 * time.Hour)

	source := newSourceStore(t, datastore.LegacyUser{
		ID:         1,
		Username:   "alice",
		Password:   "hashed-pw",
		Email:      strPtr("alice@example.com"),
		Type:       strPtr(datastore.AccountTypeVIP),
		IsVerified: 1,
		AuthCount:  2,
		VIPTime:    timePtr(expiry),
		CreatedAt:  timePtr(registered),
	})
	target := newTargetStore(t)

	result, err := newTestMigrator(source, target).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.TokensCleaned)

	user := fetchUser(t, target, "alice")
	assert.Equal(t, "hashed-pw", user.Password)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, GroupVIP, user.GroupID)
	require.NotNil(t, user.GroupTime)
	assert.True(t, user.GroupTime.Equal(expiry))
	assert.Equal(t, 1, user.IsVerified)
	assert.Equal(t, 2, user.VerifyCount)
	assert.Equal(t, datastore.UserStatusEnabled, user.Status)
	assert.True(t, user.RegisterTime.Equal(registered))

	// A freshly migrated account has no token and zeroed counters
	assert.Empty(t, user.Token)
	assert.Zero(t, user.TunnelCount)
	assert.Zero(t, user.Bandwidth)
	assert.Zero(t, user.TrafficQuota)
	assert.Zero(t, user.CheckinCount)
	assert.Zero(t, user.ContinuityCheckin)
}

func TestMigratorRun_NullableLegacyFields(t *testing.T) {
	source := newSourceStore(t, datastore.LegacyUser{
		ID:       1,
		Username: "ghost",
		Password: "pw",
		// Email, Type, VIPTime and CreatedAt all NULL
	})
	target := newTargetStore(t)

	result, err := newTestMigrator(source, target).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)

	user := fetchUser(t, target, "ghost")
	assert.Equal(t, GroupBasic, user.GroupID)
	assert.Nil(t, user.GroupTime)
	assert.Empty(t, user.Email)
	assert.Empty(t, user.VerifyInfo)
	assert.True(t, user.RegisterTime.Equal(evalTime))
}

func TestMigratorRun_UpdatePreservesToken(t *testing.T) {
	lapsed := evalTime.Add(-24 * time.Hour)

	source := newSourceStore(t, datastore.LegacyUser{
		ID:         1,
		Username:   "bob",
		Password:   "new-pw",
		Email:      strPtr("bob@new.example.com"),
		Type:       strPtr(datastore.AccountTypeVIP),
		IsVerified: 1,
		AuthCount:  3,
		VIPTime:    timePtr(lapsed),
	})
	target := newTargetStore(t)

	stale := evalTime.Add(90 * 24 * time.Hour)
	require.NoError(t, target.DB().Create(&datastore.User{
		Username:     "bob",
		Password:     "old-pw",
		Email:        "bob@old.example.com",
		GroupID:      GroupVIP,
		GroupTime:    timePtr(stale),
		Token:        "keep-me",
		TunnelCount:  5,
		Status:       datastore.UserStatusDisabled,
		RegisterTime: evalTime.Add(-400 * 24 * time.Hour),
	}).Error)

	result, err := newTestMigrator(source, target).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.EqualValues(t, 1, countUsers(t, target))

	user := fetchUser(t, target, "bob")
	assert.Equal(t, "new-pw", user.Password)
	assert.Equal(t, "bob@new.example.com", user.Email)
	assert.Equal(t, GroupVerified, user.GroupID)
	assert.Equal(t, datastore.UserStatusEnabled, user.Status)

	// The panel-issued token survives, the stale VIP expiry does not
	assert.Equal(t, "keep-me", user.Token)
	assert.Nil(t, user.GroupTime)

	// Panel-side counters are untouched by an update
	assert.Equal(t, 5, user.TunnelCount)
}

func TestMigratorRun_Idempotent(t *testing.T) {
	expiry := evalTime.Add(7 * 24 * time.Hour)

	source := newSourceStore(t,
		datastore.LegacyUser{ID: 1, Username: "alice", Password: "a", Type: strPtr(datastore.AccountTypeVIP), VIPTime: timePtr(expiry)},
		datastore.LegacyUser{ID: 2, Username: "bob", Password: "b", Type: strPtr(datastore.AccountTypeNormal), IsVerified: 1},
		datastore.LegacyUser{ID: 3, Username: "carol", Password: "c", Type: strPtr(datastore.AccountTypeNormal)},
	)
	target := newTargetStore(t)
	migrator := newTestMigrator(source, target)

	first, err := migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Migrated)

	var before []datastore.User
	require.NoError(t, target.DB().Order("username ASC").Find(&before).Error)

	second, err := migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.Migrated)
	assert.Equal(t, 0, second.TokensCleaned)

	var after []datastore.User
	require.NoError(t, target.DB().Order("username ASC").Find(&after).Error)
	assert.Equal(t, before, after)
}

func TestMigratorRun_SmallBatches(t *testing.T) {
	legacy := make([]datastore.LegacyUser, 0, 5)
	for i := uint64(1); i <= 5; i++ {
		legacy = append(legacy, datastore.LegacyUser{
			ID:       i,
			Username: "user-" + string(rune('a'+i-1)),
			Password: "pw",
		})
	}

	source := newSourceStore(t, legacy...)
	target := newTargetStore(t)
	migrator := New(&Config{
		Source:    source,
		Target:    target,
		Logger:    logging.Discard(),
		BatchSize: 2,
		Now:       func() time.Time { return evalTime },
	})

	result, err := migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Migrated)
	assert.EqualValues(t, 5, countUsers(t, target))
}

func TestMigratorRun_TokenHygiene(t *testing.T) {
	source := newSourceStore(t)
	target := newTargetStore(t)

	seed := []datastore.User{
		{Username: "compromised", Password: "pw", Token: "legacy-deadbeef"},
		{Username: "clean", Password: "pw", Token: "panel-issued"},
		{Username: "tokenless", Password: "pw"},
	}
	for i := range seed {
		require.NoError(t, target.DB().Create(&seed[i]).Error)
	}

	migrator := newTestMigrator(source, target)

	result, err := migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TokensCleaned)

	assert.Empty(t, fetchUser(t, target, "compromised").Token)
	assert.Equal(t, "panel-issued", fetchUser(t, target, "clean").Token)

	// Second pass finds nothing left to void
	result, err = migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TokensCleaned)
}

func TestMigratorRun_EmptyPrefixDisablesHygiene(t *testing.T) {
	source := newSourceStore(t)
	target := newTargetStore(t)
	require.NoError(t, target.DB().Create(&datastore.User{
		Username: "compromised", Password: "pw", Token: "legacy-deadbeef",
	}).Error)

	migrator := New(&Config{
		Source: source,
		Target: target,
		Logger: logging.Discard(),
		Now:    func() time.Time { return evalTime },
	})

	result, err := migrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TokensCleaned)
	assert.Equal(t, "legacy-deadbeef", fetchUser(t, target, "compromised").Token)
}

// failingSource serves one account and then breaks, simulating the legacy
// database disappearing mid-scan.
type failingSource struct {
	calls int
}

func (f *failingSource) Open() error  { return nil }
func (f *failingSource) Close() error { return nil }

func (f *failingSource) UsersAfter(ctx context.Context, afterID uint64, limit int) ([]datastore.LegacyUser, error) {
	f.calls++
	if f.calls == 1 {
		return []datastore.LegacyUser{{ID: 1, Username: "alice", Password: "pw"}}, nil
	}
	return nil, errors.NewStd("legacy database went away")
}

func TestMigratorRun_RollsBackOnSourceError(t *testing.T) {
	target := newTargetStore(t)
	require.NoError(t, target.DB().Create(&datastore.User{
		Username: "existing", Password: "pw", Token: "legacy-deadbeef",
	}).Error)

	migrator := New(&Config{
		Source:         &failingSource{},
		Target:         target,
		Logger:         logging.Discard(),
		BatchSize:      1,
		BadTokenPrefix: "legacy-",
		Now:            func() time.Time { return evalTime },
	})

	result, err := migrator.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMigration))
	assert.Zero(t, result)

	// Nothing committed: alice is absent and the bad token is still there
	assert.EqualValues(t, 1, countUsers(t, target))
	assert.Equal(t, "legacy-deadbeef", fetchUser(t, target, "existing").Token)
}

package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.EqualError(t, err, `unsupported database driver "oracle"`)
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, table := range []interface{}{&models.Account{}, &models.Note{}, &models.CacheEntry{}} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
	require.True(t, migrator.HasColumn(&models.Account{}, "otp_hash"))
	require.True(t, migrator.HasColumn(&models.Account{}, "dob"))
	require.True(t, migrator.HasIndex(&models.Account{}, "idx_accounts_email"))
}

func TestAutoMigrateEnforcesUniqueEmail(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&models.Account{Email: "ada@example.com", FullName: "Ada"}).Error)
	err := db.Create(&models.Account{Email: "ada@example.com", FullName: "Ada Again"}).Error
	require.Error(t, err)
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	first := openTestDB(t)
	second := openTestDB(t)
	require.NoError(t, AutoMigrate(first))

	require.True(t, first.Migrator().HasTable(&models.Account{}))
	require.False(t, second.Migrator().HasTable(&models.Account{}))
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
	require.Error(t, Ping(nil))
	require.NoError(t, Close(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: MemoryDSN(uuid.NewString())})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}

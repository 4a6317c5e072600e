package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
)

var testDBCounter int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	db, err := Open(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", testDBCounter),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestAutoMigrateAndSeedIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))
	require.NoError(t, AutoMigrateAndSeed(db))

	var managers int64
	require.NoError(t, db.Model(&models.User{}).Where("is_manager = ?", true).Count(&managers).Error)
	require.Equal(t, int64(1), managers)

	var codes int64
	require.NoError(t, db.Model(&models.ReferralCode{}).Count(&codes).Error)
	require.Equal(t, int64(1), codes)

	var code models.ReferralCode
	require.NoError(t, db.First(&code).Error)
	require.Equal(t, "00000000-0000-0000-0000-000000000001", code.OwnerID)
	require.Len(t, code.Code, 8)
	require.True(t, code.IsActive)
}

func TestSeedIgnoresCustomerNamedManager(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	impostor := models.User{ChatID: 777, Username: "manager"}
	require.NoError(t, db.Create(&impostor).Error)

	require.NoError(t, SeedData(db))

	var manager models.User
	require.NoError(t, db.First(&manager, "id = ?", bootstrapManagerID).Error)
	require.True(t, manager.IsManager)
	require.NotEqual(t, impostor.ID, manager.ID)

	// The root code is owned by the seeded manager, not the impostor.
	var code models.ReferralCode
	require.NoError(t, db.First(&code).Error)
	require.Equal(t, bootstrapManagerID, code.OwnerID)
}

func TestAutoMigrateAndSeedNilHandle(t *testing.T) {
	require.Error(t, AutoMigrateAndSeed(nil))
}

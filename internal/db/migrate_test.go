package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialmonitor/internal/models"
)

// Opening a database written before the user_identity column existed must
// add the column and backfill the unassigned default without losing rows.
// The users table here predates the column entirely; follower_records has
// it but holds empty strings, exercising the other backfill branch.
func TestAutoMigrateBackfillsUserIdentity(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(conn) })

	require.NoError(t, conn.Gorm.Exec(`CREATE TABLE users (
		id integer PRIMARY KEY AUTOINCREMENT,
		platform_id integer NOT NULL,
		user_id text NOT NULL,
		username text,
		avatar text,
		is_active numeric NOT NULL DEFAULT true,
		created_at datetime,
		updated_at datetime
	)`).Error)
	require.NoError(t, conn.Gorm.Exec(`CREATE TABLE follower_records (
		id integer PRIMARY KEY AUTOINCREMENT,
		user_id integer NOT NULL,
		platform_id integer NOT NULL,
		user_identity text,
		follower_count integer NOT NULL,
		record_time datetime NOT NULL,
		status text DEFAULT 'success',
		error_message text,
		extra JSON,
		created_at datetime
	)`).Error)
	require.NoError(t, conn.Gorm.Exec(
		`INSERT INTO users (platform_id, user_id, username) VALUES (1, '1669879400', 'old-row')`,
	).Error)
	require.NoError(t, conn.Gorm.Exec(
		`INSERT INTO follower_records (user_id, platform_id, user_identity, follower_count, record_time)
		 VALUES (1, 1, '', 500, '2025-01-01 00:00:00')`,
	).Error)

	require.NoError(t, AutoMigrate(conn))

	require.True(t, conn.Gorm.Migrator().HasColumn(&models.Account{}, "user_identity"))

	var account models.Account
	require.NoError(t, conn.Gorm.First(&account, "user_id = ?", "1669879400").Error)
	assert.Equal(t, "old-row", account.Username)
	assert.Equal(t, models.DefaultUserIdentity, account.UserIdentity)

	var record models.FollowerRecord
	require.NoError(t, conn.Gorm.First(&record, "user_id = ?", 1).Error)
	assert.Equal(t, int64(500), record.FollowerCount)
	assert.Equal(t, models.DefaultUserIdentity, record.UserIdentity)
}

// Migrating twice is a no-op and keeps assigned identity tags.
func TestAutoMigrateIsIdempotent(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(conn) })

	require.NoError(t, AutoMigrate(conn))
	account := models.Account{PlatformID: 1, UserID: "100", UserIdentity: "person-3"}
	require.NoError(t, conn.Gorm.Create(&account).Error)

	require.NoError(t, AutoMigrate(conn))

	var got models.Account
	require.NoError(t, conn.Gorm.First(&got, account.ID).Error)
	assert.Equal(t, "person-3", got.UserIdentity)
}

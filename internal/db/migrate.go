package db

import (
	"socialmonitor/internal/models"
)

// AutoMigrate brings the operational database up to the current schema.
// Databases created by earlier revisions predate the user_identity column;
// AutoMigrate adds it and the backfill below fills the documented default
// so existing rows stay queryable by identity tag.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.Platform{},
		&models.Account{},
		&models.FollowerRecord{},
		&models.ScheduleTask{},
		&models.TaskLog{},
	); err != nil {
		return err
	}

	if db.Gorm.Migrator().HasColumn(&models.Account{}, "user_identity") {
		if err := db.Gorm.Exec(
			"UPDATE users SET user_identity = '0' WHERE user_identity IS NULL OR user_identity = ''",
		).Error; err != nil {
			return err
		}
	}
	if db.Gorm.Migrator().HasColumn(&models.FollowerRecord{}, "user_identity") {
		if err := db.Gorm.Exec(
			"UPDATE follower_records SET user_identity = '0' WHERE user_identity IS NULL OR user_identity = ''",
		).Error; err != nil {
			return err
		}
	}

	return nil
}

// AutoMigrateCookies migrates the credential database.
func AutoMigrateCookies(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(&models.Cookie{})
}

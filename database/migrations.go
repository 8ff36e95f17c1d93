package database

import (
	"kazi/models"

	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for every model inside one transaction where the
// dialect supports transactional DDL.
func Migrate(db *gorm.DB) error {
	return RunMigrations(db, models.All()...)
}

func RunMigrations(db *gorm.DB, dst ...interface{}) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.AutoMigrate(dst...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

package db

import (
	"gorm.io/gorm"

	"scribe/internal/models"
)

// Migrate applies the schema for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ResearchRecord{},
		&models.PaperRef{},
	)
}

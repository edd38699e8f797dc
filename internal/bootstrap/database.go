package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/half-paul/donations2.0-sub001/internal/models"
)

// Migrate ensures the donation platform tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Donation{},
		&models.RecurringPlan{},
		&models.WebhookEventLog{},
	}
}

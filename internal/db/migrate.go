package db

import (
	"powerx/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.IPFilter{},
		&models.MarketQuote{},
		&models.Order{},
		&models.Contract{},
		&models.Settlement{},
		&models.Notification{},
		// Automation
		&models.Rule{},
		&models.RuleExecution{},
		&models.ConditionalOrder{},
		&models.TriggerLog{},
		// Ops
		&models.BackupRecord{},
	)
}

package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the reconciliation tables on db. Production
// schemas are managed outside this process; this serves local runs and tests.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// One live quota per representative and month; deleted rows may repeat.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_quotas_live_period
		ON quotas (tenant_id, user_id, year, month) WHERE deleted_at IS NULL`).Error; err != nil {
		return fmt.Errorf("create quota period index: %w", err)
	}
	return nil
}

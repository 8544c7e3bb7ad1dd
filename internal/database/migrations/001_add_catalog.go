package migrations

import (
	"github.com/simfinity/connect-api/internal/catalog"
	"gorm.io/gorm"
)

// AddCatalog creates the provider and package catalog tables plus the policy
// settings store
func AddCatalog(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&catalog.Provider{},
		&catalog.Package{},
		&catalog.CustomPackage{},
		&catalog.Setting{},
	); err != nil {
		return err
	}

	// Composite indexes for the alternative-package search, created with raw
	// SQL for control over the column set
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_packages_shape
		 ON packages(destination_slug, data_amount_mb, validity_days)`,

		`CREATE INDEX IF NOT EXISTS idx_packages_provider_enabled
		 ON packages(provider_id, enabled)`,

		`CREATE INDEX IF NOT EXISTS idx_custom_packages_shape
		 ON custom_packages(destination_slug, data_amount_mb, validity_days)`,

		`CREATE INDEX IF NOT EXISTS idx_providers_enabled_priority
		 ON providers(enabled, failover_priority)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

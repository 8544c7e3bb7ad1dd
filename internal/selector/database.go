package selector

import (
	"errors"

	"github.com/simfinity/connect-api/internal/catalog"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetEnabledProviders() ([]catalog.Provider, error) {
	var providers []catalog.Provider
	if err := d.db.Where("enabled = ?", true).
		Order("failover_priority ASC").
		Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (d *Database) GetProvider(providerID string) (*catalog.Provider, error) {
	var provider catalog.Provider
	if err := d.db.Where("provider_id = ?", providerID).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

// packageShape is the matching key used when searching for equivalents of a
// failed package
type packageShape struct {
	DestinationSlug string
	DataAmountMB    int
	ValidityDays    int
}

// GetPackageShape looks the failed package up in both catalog tables and
// returns the attributes an alternative has to match exactly
func (d *Database) GetPackageShape(packageID string) (*packageShape, error) {
	var pkg catalog.Package
	err := d.db.Where("package_id = ?", packageID).First(&pkg).Error
	if err == nil {
		return &packageShape{
			DestinationSlug: pkg.DestinationSlug,
			DataAmountMB:    pkg.DataAmountMB,
			ValidityDays:    pkg.ValidityDays,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var custom catalog.CustomPackage
	err = d.db.Where("package_id = ?", packageID).First(&custom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &packageShape{
		DestinationSlug: custom.DestinationSlug,
		DataAmountMB:    custom.DataAmountMB,
		ValidityDays:    custom.ValidityDays,
	}, nil
}

// GetMatchingPackages returns enabled synced packages with the same shape,
// excluding the failed provider's own packages
func (d *Database) GetMatchingPackages(shape *packageShape, excludeProviderID string) ([]catalog.Package, error) {
	var packages []catalog.Package
	if err := d.db.
		Where("destination_slug = ? AND data_amount_mb = ? AND validity_days = ?",
			shape.DestinationSlug, shape.DataAmountMB, shape.ValidityDays).
		Where("enabled = ?", true).
		Where("provider_id != ?", excludeProviderID).
		Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}

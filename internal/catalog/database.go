package catalog

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetProvider(providerID string) (*Provider, error) {
	var provider Provider
	if err := d.db.Where("provider_id = ?", providerID).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

func (d *Database) GetProviderBySlug(slug string) (*Provider, error) {
	var provider Provider
	if err := d.db.Where("slug = ?", slug).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

func (d *Database) GetPackage(packageID string) (*Package, error) {
	var pkg Package
	if err := d.db.Where("package_id = ?", packageID).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

func (d *Database) GetCustomPackage(packageID string) (*CustomPackage, error) {
	var pkg CustomPackage
	if err := d.db.Where("package_id = ?", packageID).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

func (d *Database) CreateProvider(provider *Provider) error {
	return d.db.Create(provider).Error
}

func (d *Database) CreatePackage(pkg *Package) error {
	return d.db.Create(pkg).Error
}

func (d *Database) CreateCustomPackage(pkg *CustomPackage) error {
	return d.db.Create(pkg).Error
}

// GetSetting returns the raw value for a settings key, or "" when unset
func (d *Database) GetSetting(key string) (string, error) {
	var setting Setting
	if err := d.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// UpsertSetting writes a settings key, creating the row if needed
func (d *Database) UpsertSetting(key, value string) error {
	result := d.db.Model(&Setting{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"value":      value,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return d.db.Create(&Setting{Key: key, Value: value}).Error
	}
	return nil
}

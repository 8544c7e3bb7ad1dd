package catalog

import (
	"time"

	"gorm.io/gorm"
)

// Provider is an upstream eSIM supplier the engine can fulfil against
type Provider struct {
	gorm.Model       `json:"-"`
	ProviderID       string    `gorm:"uniqueIndex" json:"provider_id"`
	Name             string    `json:"name"`
	Slug             string    `gorm:"uniqueIndex" json:"slug"`
	Enabled          bool      `json:"enabled"`
	FailoverPriority int       `json:"failover_priority"` // lower = tried first
	MinMarginPercent float64   `json:"min_margin_percent"` // <= 0 means no override
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Package is a provider-synced data package
type Package struct {
	gorm.Model         `json:"-"`
	PackageID          string    `gorm:"uniqueIndex" json:"package_id"`
	ProviderID         string    `gorm:"index" json:"provider_id"`
	ProviderPackageKey string    `json:"provider_package_key"`
	DestinationSlug    string    `gorm:"index" json:"destination_slug"`
	DataAmountMB       int       `json:"data_amount_mb"`
	ValidityDays       int       `json:"validity_days"`
	WholesalePrice     float64   `json:"wholesale_price"`
	RetailPrice        float64   `json:"retail_price"`
	Currency           string    `json:"currency"`
	Title              string    `json:"title"`
	Slug               string    `json:"slug"`
	Enabled            bool      `json:"enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CustomPackage is an admin-authored package. Same catalog shape as Package
// but maintained by hand rather than synced from a provider feed.
type CustomPackage struct {
	gorm.Model         `json:"-"`
	PackageID          string    `gorm:"uniqueIndex" json:"package_id"`
	ProviderID         string    `gorm:"index" json:"provider_id"`
	ProviderPackageKey string    `json:"provider_package_key"`
	DestinationSlug    string    `gorm:"index" json:"destination_slug"`
	DataAmountMB       int       `json:"data_amount_mb"`
	ValidityDays       int       `json:"validity_days"`
	WholesalePrice     float64   `json:"wholesale_price"`
	RetailPrice        float64   `json:"retail_price"`
	Currency           string    `json:"currency"`
	Title              string    `json:"title"`
	Slug               string    `json:"slug"`
	Enabled            bool      `json:"enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Setting is a key/value row in the policy store
type Setting struct {
	gorm.Model `json:"-"`
	Key        string    `gorm:"uniqueIndex;column:key" json:"key"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

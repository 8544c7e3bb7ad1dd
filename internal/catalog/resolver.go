package catalog

import (
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/types"
	"gorm.io/gorm"
)

// Resolver normalizes package lookups across the synced and custom catalog
// tables into a single projection
type Resolver struct {
	db *Database
}

func NewResolver(gormDB *gorm.DB) *Resolver {
	return &Resolver{
		db: NewDatabase(gormDB),
	}
}

// ResolvePackage returns a normalized package record for an order-line
// package identifier, checking the provider-synced table first and the
// admin-authored table second. Returns nil, nil when nothing matches or when
// the owning provider row is missing; the resolver never returns a partial
// record.
func (r *Resolver) ResolvePackage(packageID string) (*types.NormalizedPackage, error) {
	logger := log.With().
		Str("package_id", packageID).
		Str("service", "catalog").
		Logger()

	pkg, err := r.db.GetPackage(packageID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to query synced packages")
		return nil, err
	}
	if pkg != nil {
		return r.normalize(packageID, types.PackageSourceSynced, pkg.ProviderID, pkg.ProviderPackageKey,
			pkg.WholesalePrice, pkg.RetailPrice, pkg.Currency, pkg.Title, pkg.Slug)
	}

	custom, err := r.db.GetCustomPackage(packageID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to query custom packages")
		return nil, err
	}
	if custom != nil {
		return r.normalize(packageID, types.PackageSourceCustom, custom.ProviderID, custom.ProviderPackageKey,
			custom.WholesalePrice, custom.RetailPrice, custom.Currency, custom.Title, custom.Slug)
	}

	logger.Debug().Msg("package not found in any catalog table")
	return nil, nil
}

func (r *Resolver) normalize(packageID, source, providerID, providerKey string,
	wholesale, retail float64, currency, title, slug string) (*types.NormalizedPackage, error) {

	provider, err := r.db.GetProvider(providerID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		// Orphaned package row. Treat as not found rather than returning a
		// record with no provider relationship.
		log.Warn().
			Str("package_id", packageID).
			Str("provider_id", providerID).
			Str("service", "catalog").
			Msg("package references missing provider")
		return nil, nil
	}

	return &types.NormalizedPackage{
		PackageID:          packageID,
		Source:             source,
		ProviderID:         provider.ProviderID,
		ProviderName:       provider.Name,
		ProviderSlug:       provider.Slug,
		ProviderPackageKey: providerKey,
		WholesalePrice:     wholesale,
		RetailPrice:        retail,
		Currency:           currency,
		Title:              title,
		Slug:               slug,
	}, nil
}

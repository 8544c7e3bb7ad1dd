package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedDemoCatalog installs three suppliers with overlapping coverage so the
// failover path is exercisable out of the box. Idempotent: an already-seeded
// database is left untouched.
func SeedDemoCatalog(gormDB *gorm.DB) error {
	db := NewDatabase(gormDB)

	existing, err := db.GetProviderBySlug("globalsim")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	providers := []Provider{
		{ProviderID: "PRV_" + uuid.New().String(), Name: "GlobalSim", Slug: "globalsim", Enabled: true, FailoverPriority: 1, MinMarginPercent: 0},
		{ProviderID: "PRV_" + uuid.New().String(), Name: "Roamify", Slug: "roamify", Enabled: true, FailoverPriority: 2, MinMarginPercent: 12},
		{ProviderID: "PRV_" + uuid.New().String(), Name: "BudgetEsim", Slug: "budgetesim", Enabled: true, FailoverPriority: 3, MinMarginPercent: 0},
	}
	for i := range providers {
		if err := db.CreateProvider(&providers[i]); err != nil {
			return err
		}
	}

	destinations := []struct {
		slug     string
		dataMB   int
		validity int
		retail   float64
	}{
		{"europe", 5120, 30, 19.99},
		{"usa", 10240, 30, 29.99},
		{"japan", 3072, 15, 14.99},
		{"turkey", 5120, 30, 17.99},
	}

	// Wholesale spread gives each provider a different margin profile
	wholesaleFactors := []float64{0.45, 0.55, 0.65}

	for _, dest := range destinations {
		for i, provider := range providers {
			pkg := Package{
				PackageID:          "PKG_" + uuid.New().String(),
				ProviderID:         provider.ProviderID,
				ProviderPackageKey: fmt.Sprintf("%s-%s-%dmb", provider.Slug, dest.slug, dest.dataMB),
				DestinationSlug:    dest.slug,
				DataAmountMB:       dest.dataMB,
				ValidityDays:       dest.validity,
				WholesalePrice:     dest.retail * wholesaleFactors[i],
				RetailPrice:        dest.retail,
				Currency:           "USD",
				Title:              fmt.Sprintf("%s %dGB / %d days", provider.Name, dest.dataMB/1024, dest.validity),
				Slug:               fmt.Sprintf("%s-%s-%dgb", provider.Slug, dest.slug, dest.dataMB/1024),
				Enabled:            true,
			}
			if err := db.CreatePackage(&pkg); err != nil {
				return err
			}
		}
	}

	if err := db.UpsertSetting("smartFailoverEnabled", "true"); err != nil {
		return err
	}
	return db.UpsertSetting("defaultMinMarginPercent", "10")
}

// ListPackages returns all synced packages, used by the simulation to pick
// order targets
func ListPackages(gormDB *gorm.DB) ([]Package, error) {
	var packages []Package
	if err := gormDB.Where("enabled = ?", true).Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}

package selector

import (
	"path/filepath"
	"testing"

	"github.com/simfinity/connect-api/internal/catalog"
	"github.com/simfinity/connect-api/internal/margin"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *catalog.Database) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalog.Provider{},
		&catalog.Package{},
		&catalog.CustomPackage{},
		&catalog.Setting{},
	))

	store := catalog.NewDatabase(db)
	require.NoError(t, store.UpsertSetting(margin.SettingFailoverEnabled, "true"))
	require.NoError(t, store.UpsertSetting(margin.SettingDefaultMinMargin, "10"))

	return NewService(db, margin.NewService(db)), store
}

func seedProvider(t *testing.T, store *catalog.Database, id string, priority int, enabled bool, minMargin float64) {
	t.Helper()
	require.NoError(t, store.CreateProvider(&catalog.Provider{
		ProviderID:       id,
		Name:             id,
		Slug:             id,
		Enabled:          enabled,
		FailoverPriority: priority,
		MinMarginPercent: minMargin,
	}))
}

func seedPackage(t *testing.T, store *catalog.Database, id, providerID, destination string, dataMB, validity int, wholesale, retail float64) {
	t.Helper()
	require.NoError(t, store.CreatePackage(&catalog.Package{
		PackageID:       id,
		ProviderID:      providerID,
		DestinationSlug: destination,
		DataAmountMB:    dataMB,
		ValidityDays:    validity,
		WholesalePrice:  wholesale,
		RetailPrice:     retail,
		Currency:        "USD",
		Enabled:         true,
	}))
}

func TestRankByPriority(t *testing.T) {
	t.Parallel()

	candidates := []types.ProviderCandidate{
		{ProviderID: "p3", FailoverPriority: 3, WholesalePrice: 4.0},
		{ProviderID: "p1", FailoverPriority: 1, WholesalePrice: 6.0},
		{ProviderID: "p2", FailoverPriority: 2, WholesalePrice: 5.0},
	}

	ranked := RankByPriority(candidates)

	require.Len(t, ranked, 3)
	require.Equal(t, "p1", ranked[0].ProviderID)
	require.Equal(t, "p2", ranked[1].ProviderID)
	require.Equal(t, "p3", ranked[2].ProviderID)

	// Input order is untouched
	require.Equal(t, "p3", candidates[0].ProviderID)
}

func TestRankByPriorityWholesaleTieBreak(t *testing.T) {
	t.Parallel()

	candidates := []types.ProviderCandidate{
		{ProviderID: "expensive", FailoverPriority: 1, WholesalePrice: 8.0},
		{ProviderID: "cheap", FailoverPriority: 1, WholesalePrice: 2.0},
		{ProviderID: "mid", FailoverPriority: 1, WholesalePrice: 5.0},
	}

	ranked := RankByPriority(candidates)

	require.Equal(t, "cheap", ranked[0].ProviderID)
	require.Equal(t, "mid", ranked[1].ProviderID)
	require.Equal(t, "expensive", ranked[2].ProviderID)
}

func TestFindAlternativePackages(t *testing.T) {
	service, store := newTestService(t)

	seedProvider(t, store, "primary", 1, true, 0)
	seedProvider(t, store, "second", 2, true, 0)
	seedProvider(t, store, "third", 3, true, 0)
	seedProvider(t, store, "offline", 4, false, 0)

	// Failed package: europe 5GB / 30 days, sold at 20.00
	seedPackage(t, store, "pkg-primary", "primary", "europe", 5120, 30, 9.0, 20.0)
	seedPackage(t, store, "pkg-second", "second", "europe", 5120, 30, 11.0, 22.0)
	seedPackage(t, store, "pkg-third", "third", "europe", 5120, 30, 13.0, 21.0)
	seedPackage(t, store, "pkg-offline", "offline", "europe", 5120, 30, 8.0, 20.0)
	seedPackage(t, store, "pkg-wrong-shape", "second", "europe", 10240, 30, 11.0, 30.0)

	candidates, err := service.FindAlternativePackages("pkg-primary", "primary", 20.0, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Ranked by provider priority, disabled and wrong-shape rows excluded
	require.Equal(t, "second", candidates[0].ProviderID)
	require.Equal(t, "pkg-second", candidates[0].PackageID)
	require.Equal(t, "third", candidates[1].ProviderID)

	// The candidate carries the resolved minimum for the failover loop
	require.Equal(t, 10.0, candidates[0].MinMarginPercent)
}

func TestFindAlternativePackagesMarginPreFilter(t *testing.T) {
	service, store := newTestService(t)

	seedProvider(t, store, "primary", 1, true, 0)
	seedProvider(t, store, "viable", 2, true, 0)
	seedProvider(t, store, "too-expensive", 3, true, 0)
	seedProvider(t, store, "strict", 4, true, 40.0)

	seedPackage(t, store, "pkg-primary", "primary", "japan", 3072, 15, 5.0, 10.0)
	// 10 - 8 = 20% margin, passes the 10% default
	seedPackage(t, store, "pkg-viable", "viable", "japan", 3072, 15, 8.0, 12.0)
	// 10 - 9.5 = 5% margin, fails the 10% default
	seedPackage(t, store, "pkg-expensive", "too-expensive", "japan", 3072, 15, 9.5, 12.0)
	// 30% margin against the quoted retail, but the provider demands 40%
	seedPackage(t, store, "pkg-strict", "strict", "japan", 3072, 15, 7.0, 12.0)

	candidates, err := service.FindAlternativePackages("pkg-primary", "primary", 10.0, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "viable", candidates[0].ProviderID)
}

func TestFindAlternativePackagesQuantityScalesWholesale(t *testing.T) {
	service, store := newTestService(t)

	seedProvider(t, store, "primary", 1, true, 0)
	seedProvider(t, store, "alt", 2, true, 0)

	seedPackage(t, store, "pkg-primary", "primary", "usa", 1024, 7, 4.0, 10.0)
	// The quoted total covers three units at a bundle discount. Unit
	// wholesale against the total would look like a huge margin; the scaled
	// wholesale total shows the real 5.6% and fails the 10% default.
	seedPackage(t, store, "pkg-alt", "alt", "usa", 1024, 7, 8.5, 10.0)

	candidates, err := service.FindAlternativePackages("pkg-primary", "primary", 27.0, 3)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestFindAlternativePackagesUnknownPackage(t *testing.T) {
	service, _ := newTestService(t)

	candidates, err := service.FindAlternativePackages("no-such-package", "primary", 10.0, 1)
	require.NoError(t, err)
	require.Nil(t, candidates)
}

func TestEnabledProviders(t *testing.T) {
	service, store := newTestService(t)

	seedProvider(t, store, "b", 2, true, 0)
	seedProvider(t, store, "a", 1, true, 12.0)
	seedProvider(t, store, "c", 3, false, 0)

	providers, err := service.EnabledProviders()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	require.Equal(t, "a", providers[0].ProviderID)
	require.Equal(t, 12.0, providers[0].MinMarginPercent)
	require.Equal(t, "b", providers[1].ProviderID)
}

func TestIsProviderEnabled(t *testing.T) {
	service, store := newTestService(t)

	seedProvider(t, store, "up", 1, true, 0)
	seedProvider(t, store, "down", 2, false, 0)

	enabled, err := service.IsProviderEnabled("up")
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = service.IsProviderEnabled("down")
	require.NoError(t, err)
	require.False(t, enabled)

	enabled, err = service.IsProviderEnabled("missing")
	require.NoError(t, err)
	require.False(t, enabled)
}

package margin

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/simfinity/connect-api/internal/catalog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalog.Provider{}, &catalog.Setting{}))
	return db
}

func TestCalculateMargin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		wholesale float64
		retail    float64
		want      float64
	}{
		{
			name:      "healthy margin",
			wholesale: 5.0,
			retail:    10.0,
			want:      50.0,
		},
		{
			name:      "thin margin",
			wholesale: 9.0,
			retail:    10.0,
			want:      10.0,
		},
		{
			name:      "selling at a loss is negative",
			wholesale: 12.0,
			retail:    10.0,
			want:      -20.0,
		},
		{
			name:      "zero wholesale yields zero",
			wholesale: 0,
			retail:    10.0,
			want:      0,
		},
		{
			name:      "zero retail yields zero",
			wholesale: 5.0,
			retail:    0,
			want:      0,
		},
		{
			name:      "negative inputs yield zero",
			wholesale: -5.0,
			retail:    -10.0,
			want:      0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, CalculateMargin(tc.wholesale, tc.retail), 0.0001)
		})
	}
}

func TestValidateMargin(t *testing.T) {
	t.Parallel()

	t.Run("passes above threshold", func(t *testing.T) {
		calc := ValidateMargin(5.0, 10.0, 10.0)
		require.True(t, calc.Passed)
		require.InDelta(t, 50.0, calc.MarginPercent, 0.0001)
		require.Equal(t, 5.0, calc.WholesalePrice)
		require.Equal(t, 10.0, calc.RetailPrice)
		require.Equal(t, 10.0, calc.MinRequired)
	})

	t.Run("exact threshold passes", func(t *testing.T) {
		calc := ValidateMargin(90.0, 100.0, 10.0)
		require.True(t, calc.Passed)
		require.InDelta(t, 10.0, calc.MarginPercent, 0.0001)
	})

	t.Run("just under threshold fails", func(t *testing.T) {
		calc := ValidateMargin(90.1, 100.0, 10.0)
		require.False(t, calc.Passed)
		require.InDelta(t, 9.9, calc.MarginPercent, 0.0001)
	})

	t.Run("rounds to two decimal places", func(t *testing.T) {
		// (10 - 8.95) / 10 * 100 = 10.499999... rounds to 10.5
		calc := ValidateMargin(8.95, 10.0, 10.5)
		require.InDelta(t, 10.5, calc.MarginPercent, 0.0001)
		require.True(t, calc.Passed)
	})

	t.Run("non-positive price fails any positive threshold", func(t *testing.T) {
		calc := ValidateMargin(0, 10.0, 1.0)
		require.False(t, calc.Passed)
		require.Equal(t, 0.0, calc.MarginPercent)
	})
}

func TestFailoverSettingsDefaults(t *testing.T) {
	db := openTestDB(t)
	service := NewService(db)

	settings := service.FailoverSettings()
	require.False(t, settings.Enabled)
	require.Equal(t, DefaultMinMarginPercent, settings.DefaultMinMargin)
}

func TestFailoverSettingsFromStore(t *testing.T) {
	db := openTestDB(t)
	store := catalog.NewDatabase(db)
	require.NoError(t, store.UpsertSetting(SettingFailoverEnabled, "true"))
	require.NoError(t, store.UpsertSetting(SettingDefaultMinMargin, "15.5"))

	service := NewService(db)
	settings := service.FailoverSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, 15.5, settings.DefaultMinMargin)
}

func TestFailoverSettingsUnparseableMinMargin(t *testing.T) {
	db := openTestDB(t)
	store := catalog.NewDatabase(db)
	require.NoError(t, store.UpsertSetting(SettingDefaultMinMargin, "not-a-number"))

	service := NewService(db)
	require.Equal(t, DefaultMinMarginPercent, service.FailoverSettings().DefaultMinMargin)
}

func TestFailoverSettingsCaching(t *testing.T) {
	db := openTestDB(t)
	store := catalog.NewDatabase(db)
	require.NoError(t, store.UpsertSetting(SettingFailoverEnabled, "true"))

	service := NewService(db)
	require.True(t, service.FailoverSettings().Enabled)

	// A store change inside the TTL is not observed through the cache
	require.NoError(t, store.UpsertSetting(SettingFailoverEnabled, "false"))
	require.True(t, service.FailoverSettings().Enabled)

	// Busting the cache picks the change up immediately
	service.ClearCache()
	require.False(t, service.FailoverSettings().Enabled)
}

func TestFailoverSettingsTTLExpiry(t *testing.T) {
	db := openTestDB(t)
	store := catalog.NewDatabase(db)
	require.NoError(t, store.UpsertSetting(SettingDefaultMinMargin, "12"))

	service := NewService(db)
	service.ttl = time.Nanosecond

	require.Equal(t, 12.0, service.FailoverSettings().DefaultMinMargin)

	require.NoError(t, store.UpsertSetting(SettingDefaultMinMargin, "20"))
	time.Sleep(time.Millisecond)
	require.Equal(t, 20.0, service.FailoverSettings().DefaultMinMargin)
}

func TestProviderMinMargin(t *testing.T) {
	db := openTestDB(t)
	store := catalog.NewDatabase(db)
	require.NoError(t, store.CreateProvider(&catalog.Provider{
		ProviderID:       "prov-override",
		Name:             "Override",
		Slug:             "override",
		Enabled:          true,
		MinMarginPercent: 17.5,
	}))
	require.NoError(t, store.CreateProvider(&catalog.Provider{
		ProviderID: "prov-default",
		Name:       "Default",
		Slug:       "default",
		Enabled:    true,
	}))

	service := NewService(db)

	require.Equal(t, 17.5, service.ProviderMinMargin("prov-override"))
	require.Equal(t, DefaultMinMarginPercent, service.ProviderMinMargin("prov-default"))
	require.Equal(t, DefaultMinMarginPercent, service.ProviderMinMargin("prov-missing"))
}

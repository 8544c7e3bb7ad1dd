package margin

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/catalog"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/simfinity/connect-api/pkg/response"
	"gorm.io/gorm"
)

// Settings keys read from the policy store
const (
	SettingFailoverEnabled  = "smartFailoverEnabled"
	SettingDefaultMinMargin = "defaultMinMarginPercent"
)

const (
	// DefaultMinMarginPercent applies when the policy store has no value
	DefaultMinMarginPercent = 10.0

	settingsCacheTTL = 60 * time.Second
)

// FailoverSettings is the global failover policy
type FailoverSettings struct {
	Enabled          bool    `json:"enabled"`
	DefaultMinMargin float64 `json:"default_min_margin"`
}

// CalculateMargin returns the margin percent for a wholesale/retail pair.
// Total over all real inputs: non-positive prices yield 0, which fails any
// positive threshold downstream.
func CalculateMargin(wholesale, retail float64) float64 {
	if wholesale <= 0 || retail <= 0 {
		return 0
	}
	return (retail - wholesale) / retail * 100
}

// ValidateMargin computes the margin percent rounded to 2 decimal places and
// checks it against the minimum required. Side-effect free.
func ValidateMargin(wholesale, retail, minRequired float64) types.MarginCalculation {
	percent := math.Round(CalculateMargin(wholesale, retail)*100) / 100
	return types.MarginCalculation{
		WholesalePrice: wholesale,
		RetailPrice:    retail,
		MarginPercent:  percent,
		MinRequired:    minRequired,
		Passed:         percent >= minRequired,
	}
}

// Service reads margin policy from the settings store with a short-lived
// process-wide cache, and resolves per-provider minimum overrides
type Service struct {
	db *catalog.Database

	mu        sync.RWMutex
	cached    *FailoverSettings
	fetchedAt time.Time
	ttl       time.Duration
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:  catalog.NewDatabase(gormDB),
		ttl: settingsCacheTTL,
	}
}

// FailoverSettings returns the global failover policy. The result is cached
// for the TTL so the hot ordering path avoids a store round-trip per order.
// Absent settings default to disabled / 10%.
func (s *Service) FailoverSettings() FailoverSettings {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		settings := *s.cached
		s.mu.RUnlock()
		return settings
	}
	s.mu.RUnlock()

	settings := s.loadSettings()

	s.mu.Lock()
	s.cached = &settings
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return settings
}

// ClearCache drops the cached policy so the next read hits the store
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// ProviderMinMargin returns the provider's minimum margin override, falling
// back to the global default when the provider has none configured
func (s *Service) ProviderMinMargin(providerID string) float64 {
	provider, err := s.db.GetProvider(providerID)
	if err != nil {
		log.Error().Err(err).
			Str("provider_id", providerID).
			Str("service", "margin").
			Msg("failed to fetch provider for margin override")
		return s.FailoverSettings().DefaultMinMargin
	}
	if provider == nil || provider.MinMarginPercent <= 0 {
		return s.FailoverSettings().DefaultMinMargin
	}
	return provider.MinMarginPercent
}

// GinHandlers contains HTTP handlers for margin policy endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ClearCacheHandler handles POST requests to bust the cached failover policy
// Requires internal authentication
func (h *GinHandlers) ClearCacheHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.service.ClearCache()
		response.Success(c, h.service.FailoverSettings())
	}
}

func (s *Service) loadSettings() FailoverSettings {
	logger := log.With().Str("service", "margin").Logger()

	settings := FailoverSettings{
		Enabled:          false,
		DefaultMinMargin: DefaultMinMarginPercent,
	}

	enabled, err := s.db.GetSetting(SettingFailoverEnabled)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read failover enabled setting")
	} else if enabled != "" {
		settings.Enabled = enabled == "true"
	}

	minMargin, err := s.db.GetSetting(SettingDefaultMinMargin)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read default min margin setting")
	} else if minMargin != "" {
		if parsed, err := strconv.ParseFloat(minMargin, 64); err == nil {
			settings.DefaultMinMargin = parsed
		} else {
			logger.Warn().
				Str("value", minMargin).
				Msg("unparseable min margin setting, using default")
		}
	}

	logger.Debug().
		Bool("failover_enabled", settings.Enabled).
		Float64("default_min_margin", settings.DefaultMinMargin).
		Msg("loaded failover settings")

	return settings
}

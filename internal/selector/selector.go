package selector

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/margin"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/simfinity/connect-api/pkg/response"
	"gorm.io/gorm"
)

// Service discovers and ranks alternative fulfillment providers
type Service struct {
	db     *Database
	margin *margin.Service
}

func NewService(gormDB *gorm.DB, marginService *margin.Service) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		margin: marginService,
	}
}

// EnabledProviders returns all providers currently flagged enabled
func (s *Service) EnabledProviders() ([]types.ProviderResponse, error) {
	providers, err := s.db.GetEnabledProviders()
	if err != nil {
		return nil, err
	}

	results := make([]types.ProviderResponse, len(providers))
	for i, p := range providers {
		results[i] = types.ProviderResponse{
			ProviderID:       p.ProviderID,
			Name:             p.Name,
			Slug:             p.Slug,
			Enabled:          p.Enabled,
			FailoverPriority: p.FailoverPriority,
			MinMarginPercent: p.MinMarginPercent,
		}
	}
	return results, nil
}

// IsProviderEnabled reports whether a provider exists and is enabled
func (s *Service) IsProviderEnabled(providerID string) (bool, error) {
	provider, err := s.db.GetProvider(providerID)
	if err != nil {
		return false, err
	}
	return provider != nil && provider.Enabled, nil
}

// FindAlternativePackages finds packages equivalent to a failed one (same
// destination, data amount, and validity) offered by other enabled providers.
// Each candidate's margin is validated against the ORIGINAL retail total with
// that provider's own minimum; failing candidates are dropped here rather
// than carried into the failover loop. Survivors come back ranked.
func (s *Service) FindAlternativePackages(failedPackageID, excludeProviderID string, retailTotal float64, quantity int) ([]types.ProviderCandidate, error) {
	logger := log.With().
		Str("failed_package_id", failedPackageID).
		Str("exclude_provider_id", excludeProviderID).
		Float64("retail_total", retailTotal).
		Str("service", "selector").
		Logger()

	shape, err := s.db.GetPackageShape(failedPackageID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch failed package attributes")
		return nil, err
	}
	if shape == nil {
		logger.Warn().Msg("failed package not found, no alternatives possible")
		return nil, nil
	}

	matches, err := s.db.GetMatchingPackages(shape, excludeProviderID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to query matching packages")
		return nil, err
	}

	logger.Debug().
		Int("matches_found", len(matches)).
		Str("destination", shape.DestinationSlug).
		Int("data_amount_mb", shape.DataAmountMB).
		Int("validity_days", shape.ValidityDays).
		Msg("found shape-matching packages")

	var candidates []types.ProviderCandidate
	for _, pkg := range matches {
		provider, err := s.db.GetProvider(pkg.ProviderID)
		if err != nil {
			logger.Error().Err(err).Str("provider_id", pkg.ProviderID).Msg("failed to fetch candidate provider")
			return nil, err
		}
		if provider == nil || !provider.Enabled {
			continue
		}

		minMargin := provider.MinMarginPercent
		if minMargin <= 0 {
			minMargin = s.margin.FailoverSettings().DefaultMinMargin
		}

		// Margin is a pre-filter: the customer's quoted retail total is
		// preserved, so the candidate's wholesale total decides viability.
		wholesaleTotal := pkg.WholesalePrice * float64(quantity)
		calc := margin.ValidateMargin(wholesaleTotal, retailTotal, minMargin)
		if !calc.Passed {
			logger.Debug().
				Str("provider_id", provider.ProviderID).
				Str("package_id", pkg.PackageID).
				Float64("margin_percent", calc.MarginPercent).
				Float64("min_required", minMargin).
				Msg("candidate dropped by margin pre-filter")
			continue
		}

		candidates = append(candidates, types.ProviderCandidate{
			ProviderID:         provider.ProviderID,
			ProviderName:       provider.Name,
			ProviderSlug:       provider.Slug,
			PackageID:          pkg.PackageID,
			ProviderPackageKey: pkg.ProviderPackageKey,
			WholesalePrice:     pkg.WholesalePrice,
			FailoverPriority:   provider.FailoverPriority,
			MinMarginPercent:   minMargin,
		})
	}

	ranked := RankByPriority(candidates)

	logger.Info().
		Int("candidates", len(ranked)).
		Msg("alternative package search completed")

	return ranked, nil
}

// GinHandlers contains HTTP handlers for provider endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// EnabledProvidersHandler handles GET requests for the enabled provider list
// Requires internal authentication
func (h *GinHandlers) EnabledProvidersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		providers, err := h.service.EnabledProviders()
		response.Handle(c, providers, err)
	}
}

// RankByPriority orders candidates ascending by the provider's configured
// failover priority, breaking ties by cheaper wholesale price
func RankByPriority(candidates []types.ProviderCandidate) []types.ProviderCandidate {
	ranked := make([]types.ProviderCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FailoverPriority != ranked[j].FailoverPriority {
			return ranked[i].FailoverPriority < ranked[j].FailoverPriority
		}
		return ranked[i].WholesalePrice < ranked[j].WholesalePrice
	})

	return ranked
}

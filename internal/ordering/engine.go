package ordering

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/gateway"
	"github.com/simfinity/connect-api/internal/margin"
	"github.com/simfinity/connect-api/internal/types"
)

// PackageResolver looks an order-line package identifier up across the
// catalog tables
type PackageResolver interface {
	ResolvePackage(packageID string) (*types.NormalizedPackage, error)
}

// ProviderSelector gates the primary provider and discovers ranked
// alternatives during failover
type ProviderSelector interface {
	IsProviderEnabled(providerID string) (bool, error)
	FindAlternativePackages(failedPackageID, excludeProviderID string, retailTotal float64, quantity int) ([]types.ProviderCandidate, error)
}

// MarginPolicy supplies the failover policy and per-provider margin minimums
type MarginPolicy interface {
	FailoverSettings() margin.FailoverSettings
	ProviderMinMargin(providerID string) float64
}

// GatewayRegistry resolves a provider slug to its order-placement client
type GatewayRegistry interface {
	ServiceFor(providerSlug string) (gateway.ProviderService, error)
}

// AdminNotifier receives the two terminal event shapes the engine emits
type AdminNotifier interface {
	OrderFailed(customerEmail string, quantity int, attempts []types.FailoverAttempt)
	FailoverSuccess(originalProviderID, finalProviderID string, failedAttempts int, attempts []types.FailoverAttempt)
}

// OutcomeStore persists the provider assignment and attempts ledger for an
// order id
type OutcomeStore interface {
	SaveFailoverOutcome(orderID, originalProviderID, finalProviderID string, attempts []types.FailoverAttempt) error
}

// Engine coordinates package resolution, margin gating, the primary provider
// attempt and the failover loop. One CreateOrder call per purchase; attempts
// are strictly sequential, never parallel, so a single customer order can
// never be provisioned twice.
type Engine struct {
	resolver PackageResolver
	selector ProviderSelector
	policy   MarginPolicy
	gateways GatewayRegistry
	notifier AdminNotifier
	store    OutcomeStore
}

func NewEngine(
	resolver PackageResolver,
	selector ProviderSelector,
	policy MarginPolicy,
	gateways GatewayRegistry,
	notifier AdminNotifier,
	store OutcomeStore,
) *Engine {
	return &Engine{
		resolver: resolver,
		selector: selector,
		policy:   policy,
		gateways: gateways,
		notifier: notifier,
		store:    store,
	}
}

// CreateOrder runs one purchase to its terminal state. It never returns an
// error: every path, including panics out of a gateway client, is converted
// into a structured OrderResult.
func (e *Engine) CreateOrder(req types.OrderRequest) *types.OrderResult {
	logger := log.With().
		Str("package_id", req.UnifiedPackageID).
		Str("transaction_id", req.TransactionID).
		Int("quantity", req.Quantity).
		Str("service", "ordering").
		Logger()

	logger.Info().Msg("starting order fulfillment")

	// Resolve the package. No provider was contacted, so pre-flight
	// rejections carry an empty ledger.
	pkg, err := e.resolver.ResolvePackage(req.UnifiedPackageID)
	if err != nil {
		logger.Error().Err(err).Msg("package resolution failed")
		return failureResult(types.ErrCodePackageNotFound,
			fmt.Sprintf("failed to resolve package %s: %v", req.UnifiedPackageID, err))
	}
	if pkg == nil {
		logger.Warn().Msg("package not found")
		return failureResult(types.ErrCodePackageNotFound,
			fmt.Sprintf("package %s not found", req.UnifiedPackageID))
	}

	if pkg.ProviderID == "" {
		logger.Error().Msg("package has no associated provider")
		return failureResult(types.ErrCodeNoProvider,
			fmt.Sprintf("package %s has no associated provider", req.UnifiedPackageID))
	}

	// Margin math runs on order totals so per-unit rounding cannot slip an
	// order under the policy.
	quantity := float64(req.Quantity)
	wholesaleTotal := pkg.WholesalePrice * quantity
	retailTotal := pkg.RetailPrice * quantity

	enabled, err := e.selector.IsProviderEnabled(pkg.ProviderID)
	if err != nil {
		logger.Error().Err(err).Msg("provider enabled check failed")
		return failureResult(types.ErrCodeProviderDisabled,
			fmt.Sprintf("failed to check provider %s: %v", pkg.ProviderID, err))
	}
	if !enabled {
		logger.Warn().Str("provider_id", pkg.ProviderID).Msg("primary provider disabled")
		result := failureResult(types.ErrCodeProviderDisabled,
			fmt.Sprintf("provider %s is disabled", pkg.ProviderID))
		result.OriginalProviderID = pkg.ProviderID
		return result
	}

	// Margin gate. Runs strictly before "attempting" begins, so a rejection
	// here produces no ledger entry and never touches the network.
	minMargin := e.policy.ProviderMinMargin(pkg.ProviderID)
	calc := margin.ValidateMargin(wholesaleTotal, retailTotal, minMargin)
	if !calc.Passed {
		logger.Warn().
			Float64("margin_percent", calc.MarginPercent).
			Float64("min_required", minMargin).
			Msg("primary margin check failed")
		result := failureResult(types.ErrCodeMarginNotMet,
			fmt.Sprintf("margin %.2f%% below required %.2f%%", calc.MarginPercent, minMargin))
		result.OriginalProviderID = pkg.ProviderID
		return result
	}

	// Primary attempt
	var attempts []types.FailoverAttempt
	attempt, resp := e.attemptProvider(pkg.ProviderID, pkg.ProviderName, pkg.ProviderSlug,
		pkg.ProviderPackageKey, req, calc)
	attempts = append(attempts, attempt)

	if attempt.Success {
		logger.Info().
			Str("provider_id", pkg.ProviderID).
			Str("provider_order_id", resp.ProviderOrderID).
			Msg("primary provider fulfilled the order")

		e.persistOutcome(req.OrderID, pkg.ProviderID, pkg.ProviderID, attempts)

		return &types.OrderResult{
			Success:            true,
			ProviderOrderID:    resp.ProviderOrderID,
			EsimDetails:        esimDetailsFrom(resp),
			FailoverUsed:       false,
			OriginalProviderID: pkg.ProviderID,
			FinalProviderID:    pkg.ProviderID,
			Attempts:           attempts,
		}
	}

	logger.Warn().
		Str("provider_id", pkg.ProviderID).
		Str("error_code", attempt.ErrorCode).
		Str("error", attempt.Error).
		Msg("primary provider attempt failed")

	// Failover disabled: return the primary failure verbatim. The single
	// failed attempt is the whole ledger.
	settings := e.policy.FailoverSettings()
	if !settings.Enabled {
		logger.Info().Msg("failover disabled, returning primary failure")
		return &types.OrderResult{
			Success:            false,
			FailoverUsed:       false,
			OriginalProviderID: pkg.ProviderID,
			Attempts:           attempts,
			Error:              attempt.Error,
			ErrorCode:          attempt.ErrorCode,
		}
	}

	return e.runFailover(req, pkg, retailTotal, attempts, logger)
}

// runFailover searches for alternatives and tries them in ranked order. The
// quoted retail total is preserved for every candidate's margin check; the
// customer price is never renegotiated mid-failover.
func (e *Engine) runFailover(req types.OrderRequest, pkg *types.NormalizedPackage,
	retailTotal float64, attempts []types.FailoverAttempt, logger zerolog.Logger) *types.OrderResult {

	candidates, err := e.selector.FindAlternativePackages(req.UnifiedPackageID, pkg.ProviderID, retailTotal, req.Quantity)
	if err != nil {
		logger.Error().Err(err).Msg("alternative package search failed")
		candidates = nil
	}

	if len(candidates) == 0 {
		logger.Warn().Msg("no viable failover candidates")
		e.notifier.OrderFailed(req.CustomerEmail, req.Quantity, attempts)
		return &types.OrderResult{
			Success:            false,
			FailoverUsed:       true,
			OriginalProviderID: pkg.ProviderID,
			Attempts:           attempts,
			Error:              "all providers failed to fulfill the order",
			ErrorCode:          types.ErrCodeAllProvidersFailed,
		}
	}

	logger.Info().Int("candidates", len(candidates)).Msg("starting failover loop")

	for _, candidate := range candidates {
		quantity := float64(req.Quantity)
		calc := margin.ValidateMargin(candidate.WholesalePrice*quantity, retailTotal, candidate.MinMarginPercent)

		// A candidate at this point has been selected as a serious option,
		// so a margin rejection inside the loop counts as an attempt, unlike
		// the primary's pre-flight gate. No network call is made.
		if !calc.Passed {
			attempts = append(attempts, types.FailoverAttempt{
				ProviderID:   candidate.ProviderID,
				ProviderName: candidate.ProviderName,
				Timestamp:    time.Now(),
				Success:      false,
				Error:        fmt.Sprintf("margin %.2f%% below required %.2f%%", calc.MarginPercent, candidate.MinMarginPercent),
				ErrorCode:    types.ErrCodeMarginNotMet,
				ResponseMs:   0,
				Margin:       calc,
			})
			logger.Warn().
				Str("provider_id", candidate.ProviderID).
				Float64("margin_percent", calc.MarginPercent).
				Msg("candidate failed margin check inside failover loop")
			continue
		}

		attempt, resp := e.attemptProvider(candidate.ProviderID, candidate.ProviderName, candidate.ProviderSlug,
			candidate.ProviderPackageKey, req, calc)
		attempts = append(attempts, attempt)

		if attempt.Success {
			failedCount := len(attempts) - 1
			logger.Info().
				Str("original_provider_id", pkg.ProviderID).
				Str("final_provider_id", candidate.ProviderID).
				Int("failed_attempts", failedCount).
				Msg("failover succeeded")

			e.persistOutcome(req.OrderID, pkg.ProviderID, candidate.ProviderID, attempts)
			e.notifier.FailoverSuccess(pkg.ProviderID, candidate.ProviderID, failedCount, attempts)

			return &types.OrderResult{
				Success:            true,
				ProviderOrderID:    resp.ProviderOrderID,
				EsimDetails:        esimDetailsFrom(resp),
				FailoverUsed:       true,
				OriginalProviderID: pkg.ProviderID,
				FinalProviderID:    candidate.ProviderID,
				Attempts:           attempts,
			}
		}

		logger.Warn().
			Str("provider_id", candidate.ProviderID).
			Str("error_code", attempt.ErrorCode).
			Msg("failover candidate attempt failed")
	}

	logger.Error().Int("total_attempts", len(attempts)).Msg("all providers exhausted")
	e.notifier.OrderFailed(req.CustomerEmail, req.Quantity, attempts)

	return &types.OrderResult{
		Success:            false,
		FailoverUsed:       true,
		OriginalProviderID: pkg.ProviderID,
		Attempts:           attempts,
		Error:              "all providers failed to fulfill the order",
		ErrorCode:          types.ErrCodeAllProvidersFailed,
	}
}

// attemptProvider makes exactly one gateway call and records it as a ledger
// entry, success or failure, with wall-clock latency. Panics out of a gateway
// client are converted into EXCEPTION attempts.
func (e *Engine) attemptProvider(providerID, providerName, providerSlug, providerPackageKey string,
	req types.OrderRequest, calc types.MarginCalculation) (attempt types.FailoverAttempt, resp *gateway.CreateOrderResponse) {

	attempt = types.FailoverAttempt{
		ProviderID:   providerID,
		ProviderName: providerName,
		Timestamp:    time.Now(),
		Margin:       calc,
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			attempt.ResponseMs = time.Since(start).Milliseconds()
			attempt.Success = false
			attempt.Error = fmt.Sprintf("provider call panicked: %v", r)
			attempt.ErrorCode = types.ErrCodeException
			resp = nil
		}
	}()

	service, err := e.gateways.ServiceFor(providerSlug)
	if err != nil {
		attempt.ResponseMs = time.Since(start).Milliseconds()
		attempt.Success = false
		attempt.Error = err.Error()
		attempt.ErrorCode = types.ErrCodeException
		return attempt, nil
	}

	resp, err = service.CreateOrder(gateway.CreateOrderRequest{
		PackageID:     providerPackageKey,
		Quantity:      req.Quantity,
		TransactionID: req.TransactionID,
		CustomerRef:   req.CustomerEmail,
	})
	attempt.ResponseMs = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		attempt.Success = false
		attempt.Error = err.Error()
		attempt.ErrorCode = types.ErrCodeException
	case resp == nil || !resp.Success:
		attempt.Success = false
		attempt.ErrorCode = types.ErrCodeProviderError
		if resp != nil && resp.ErrorMessage != "" {
			attempt.Error = resp.ErrorMessage
		} else {
			attempt.Error = "provider reported failure"
		}
	default:
		attempt.Success = true
	}

	return attempt, resp
}

// persistOutcome is best-effort: the provider has already committed, so a
// bookkeeping failure is logged and must not flip the result
func (e *Engine) persistOutcome(orderID, originalProviderID, finalProviderID string, attempts []types.FailoverAttempt) {
	if orderID == "" {
		return
	}
	if err := e.store.SaveFailoverOutcome(orderID, originalProviderID, finalProviderID, attempts); err != nil {
		log.Error().Err(err).
			Str("order_id", orderID).
			Str("service", "ordering").
			Msg("failed to persist failover outcome")
	}
}

// esimDetailsFrom builds the provisioning artifact when the provider issued a
// subscriber identity. A success without an ICCID keeps esim details empty.
func esimDetailsFrom(resp *gateway.CreateOrderResponse) *types.EsimDetails {
	if resp == nil || resp.ICCID == "" {
		return nil
	}
	return &types.EsimDetails{
		ICCID:          resp.ICCID,
		QRCode:         resp.QRCode,
		QRCodeURL:      resp.QRCodeURL,
		SmdpAddress:    resp.SmdpAddress,
		ActivationCode: resp.ActivationCode,
	}
}

func failureResult(code, message string) *types.OrderResult {
	return &types.OrderResult{
		Success:   false,
		Attempts:  []types.FailoverAttempt{},
		Error:     message,
		ErrorCode: code,
	}
}

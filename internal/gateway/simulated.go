package gateway

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SimulatedProvider is a mock upstream supplier used by the simulation and
// local development. Real provider clients register themselves with the
// Registry the same way.
type SimulatedProvider struct {
	Slug        string
	Name        string
	MinLatency  int // in milliseconds
	MaxLatency  int
	SuccessRate float64 // 0-1, probability of a successful placement
	SmdpAddress string
}

// DefaultSimulatedProviders mirrors a typical three-supplier setup: a fast
// primary, a slower secondary, and a flaky budget supplier.
var DefaultSimulatedProviders = []*SimulatedProvider{
	{
		Slug:        "globalsim",
		Name:        "GlobalSim",
		MinLatency:  20,
		MaxLatency:  120,
		SuccessRate: 0.95,
		SmdpAddress: "smdp.globalsim.example",
	},
	{
		Slug:        "roamify",
		Name:        "Roamify",
		MinLatency:  50,
		MaxLatency:  250,
		SuccessRate: 0.90,
		SmdpAddress: "rsp.roamify.example",
	},
	{
		Slug:        "budgetesim",
		Name:        "BudgetEsim",
		MinLatency:  80,
		MaxLatency:  400,
		SuccessRate: 0.70,
		SmdpAddress: "smdp.budgetesim.example",
	},
}

// CreateOrder simulates an order placement against the provider's API
func (p *SimulatedProvider) CreateOrder(req CreateOrderRequest) (*CreateOrderResponse, error) {
	logger := log.With().
		Str("provider", p.Slug).
		Str("package_id", req.PackageID).
		Int("quantity", req.Quantity).
		Str("transaction_id", req.TransactionID).
		Logger()

	logger.Info().Msg("placing order with provider")

	// Simulate network latency
	latency := rand.Intn(p.MaxLatency-p.MinLatency+1) + p.MinLatency
	time.Sleep(time.Duration(latency) * time.Millisecond)

	if rand.Float64() > p.SuccessRate {
		logger.Warn().
			Float64("success_rate", p.SuccessRate).
			Msg("provider rejected the order")
		return &CreateOrderResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("provider %s rejected the order", p.Slug),
		}, nil
	}

	iccid := fmt.Sprintf("8944%014d", rand.Int63n(1e14))
	activationCode := uuid.New().String()

	resp := &CreateOrderResponse{
		Success:         true,
		ProviderOrderID: fmt.Sprintf("%s-%d", p.Slug, rand.Int63()),
		ICCID:           iccid,
		QRCode:          fmt.Sprintf("LPA:1$%s$%s", p.SmdpAddress, activationCode),
		QRCodeURL:       fmt.Sprintf("https://qr.%s/%s.png", p.SmdpAddress, activationCode),
		SmdpAddress:     p.SmdpAddress,
		ActivationCode:  activationCode,
	}

	logger.Info().
		Str("provider_order_id", resp.ProviderOrderID).
		Str("iccid", resp.ICCID).
		Int("latency_ms", latency).
		Msg("provider accepted the order")

	return resp, nil
}

// RegisterSimulatedProviders installs the default simulated suppliers
func RegisterSimulatedProviders(registry *Registry) {
	for _, provider := range DefaultSimulatedProviders {
		registry.Register(provider.Slug, provider)
	}
}

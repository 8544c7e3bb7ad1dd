package gateway

import (
	"fmt"
	"sync"
)

// CreateOrderRequest is the single capability the engine needs from a
// provider: place an order for a provider-specific package key
type CreateOrderRequest struct {
	PackageID     string `json:"package_id"` // provider-specific package key
	Quantity      int    `json:"quantity"`
	TransactionID string `json:"transaction_id"` // caller idempotency key
	CustomerRef   string `json:"customer_ref"`
}

// CreateOrderResponse is a provider's answer to an order placement. Success
// without an ICCID is legal; some providers provision asynchronously.
type CreateOrderResponse struct {
	Success         bool   `json:"success"`
	ProviderOrderID string `json:"provider_order_id,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ICCID           string `json:"iccid,omitempty"`
	QRCode          string `json:"qr_code,omitempty"`
	QRCodeURL       string `json:"qr_code_url,omitempty"`
	SmdpAddress     string `json:"smdp_address,omitempty"`
	ActivationCode  string `json:"activation_code,omitempty"`
}

// ProviderService is the per-provider client capability consumed by the
// ordering engine. Idempotency on repeated TransactionIDs is the
// implementation's responsibility, not the engine's.
type ProviderService interface {
	CreateOrder(req CreateOrderRequest) (*CreateOrderResponse, error)
}

// Registry maps provider slugs to their client implementations
type Registry struct {
	mu       sync.RWMutex
	services map[string]ProviderService
}

func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]ProviderService),
	}
}

// Register installs a client for a provider slug, replacing any previous one
func (r *Registry) Register(providerSlug string, service ProviderService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[providerSlug] = service
}

// ServiceFor returns the client registered for a provider slug
func (r *Registry) ServiceFor(providerSlug string) (ProviderService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[providerSlug]
	if !exists {
		return nil, fmt.Errorf("no provider service registered for %s", providerSlug)
	}
	return service, nil
}

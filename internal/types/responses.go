package types

import "time"

// OrderStatusResponse represents the API view of a purchase order
type OrderStatusResponse struct {
	OrderID            string            `json:"order_id"`
	ClientID           string            `json:"client_id"`
	PackageID          string            `json:"package_id"`
	Quantity           int               `json:"quantity"`
	Status             string            `json:"status"`
	FailoverUsed       bool              `json:"failover_used"`
	OriginalProviderID string            `json:"original_provider_id,omitempty"`
	FinalProviderID    string            `json:"final_provider_id,omitempty"`
	ProviderOrderID    string            `json:"provider_order_id,omitempty"`
	EsimDetails        *EsimDetails      `json:"esim_details,omitempty"`
	Attempts           []FailoverAttempt `json:"attempts"`
	ErrorCode          string            `json:"error_code,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ProviderResponse represents the admin view of a fulfillment provider
type ProviderResponse struct {
	ProviderID       string  `json:"provider_id"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	Enabled          bool    `json:"enabled"`
	FailoverPriority int     `json:"failover_priority"`
	MinMarginPercent float64 `json:"min_margin_percent"`
}

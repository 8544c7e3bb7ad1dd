package types

import "time"

// Package source families. A package can live in either the provider-synced
// catalog or the admin-authored one; the resolver normalizes both.
const (
	PackageSourceSynced = "synced"
	PackageSourceCustom = "custom"
)

// Order sources accepted from callers
const (
	OrderSourceWebsite = "website"
	OrderSourceAPI     = "api"
	OrderSourceMobile  = "mobile"
	OrderSourceAdmin   = "admin"
)

// Machine-readable error codes surfaced by the ordering engine
const (
	ErrCodePackageNotFound    = "PACKAGE_NOT_FOUND"
	ErrCodeNoProvider         = "NO_PROVIDER"
	ErrCodeProviderDisabled   = "PROVIDER_DISABLED"
	ErrCodeMarginNotMet       = "MARGIN_NOT_MET"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeException          = "EXCEPTION"
	ErrCodeAllProvidersFailed = "ALL_PROVIDERS_FAILED"
)

// OrderRequest is the immutable input to the ordering engine.
// The engine never mutates it; one request maps to one CreateOrder call.
type OrderRequest struct {
	UnifiedPackageID string `json:"unified_package_id" binding:"required"`
	Quantity         int    `json:"quantity" binding:"required,min=1,max=10"`
	CustomerEmail    string `json:"customer_email" binding:"required,email"`
	CustomerName     string `json:"customer_name"`
	TransactionID    string `json:"transaction_id" binding:"required"`
	Source           string `json:"source"`
	OrderID          string `json:"order_id"`
	PartnerRef       string `json:"partner_ref"`
	WebhookURL       string `json:"webhook_url"`
}

// NormalizedPackage is the read-only projection produced by the package
// resolver, uniform across both underlying catalog tables.
type NormalizedPackage struct {
	PackageID          string  `json:"package_id"`
	Source             string  `json:"source"` // synced or custom
	ProviderID         string  `json:"provider_id"`
	ProviderName       string  `json:"provider_name"`
	ProviderSlug       string  `json:"provider_slug"`
	ProviderPackageKey string  `json:"provider_package_key"`
	WholesalePrice     float64 `json:"wholesale_price"`
	RetailPrice        float64 `json:"retail_price"`
	Currency           string  `json:"currency"`
	Title              string  `json:"title"`
	Slug               string  `json:"slug"`
}

// MarginCalculation records a single margin validation.
type MarginCalculation struct {
	WholesalePrice float64 `json:"wholesale_price"`
	RetailPrice    float64 `json:"retail_price"`
	MarginPercent  float64 `json:"margin_percent"`
	MinRequired    float64 `json:"min_required"`
	Passed         bool    `json:"passed"`
}

// ProviderCandidate is an alternative fulfillment option discovered during
// failover. Computed per search, never persisted standalone.
type ProviderCandidate struct {
	ProviderID         string  `json:"provider_id"`
	ProviderName       string  `json:"provider_name"`
	ProviderSlug       string  `json:"provider_slug"`
	PackageID          string  `json:"package_id"`
	ProviderPackageKey string  `json:"provider_package_key"`
	WholesalePrice     float64 `json:"wholesale_price"`
	FailoverPriority   int     `json:"failover_priority"`
	MinMarginPercent   float64 `json:"min_margin_percent"`
}

// FailoverAttempt is one entry in the append-only ledger of an order's
// fulfillment journey. Attempts are recorded in the order they occur and
// never reordered or removed.
type FailoverAttempt struct {
	ProviderID   string            `json:"provider_id"`
	ProviderName string            `json:"provider_name"`
	Timestamp    time.Time         `json:"timestamp"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ResponseMs   int64             `json:"response_ms"`
	Margin       MarginCalculation `json:"margin"`
}

// EsimDetails is the provisioning artifact returned by a successful provider
// call. The engine forwards it without interpreting its contents.
type EsimDetails struct {
	ICCID          string `json:"iccid"`
	QRCode         string `json:"qr_code,omitempty"`
	QRCodeURL      string `json:"qr_code_url,omitempty"`
	SmdpAddress    string `json:"smdp_address,omitempty"`
	ActivationCode string `json:"activation_code,omitempty"`
	IOSInstallURL  string `json:"ios_install_url,omitempty"`
	AndroidInstall string `json:"android_install_url,omitempty"`
}

// OrderResult is the engine's terminal output, immutable once returned.
type OrderResult struct {
	Success            bool              `json:"success"`
	ProviderOrderID    string            `json:"provider_order_id,omitempty"`
	EsimDetails        *EsimDetails      `json:"esim_details,omitempty"`
	FailoverUsed       bool              `json:"failover_used"`
	OriginalProviderID string            `json:"original_provider_id,omitempty"`
	FinalProviderID    string            `json:"final_provider_id,omitempty"`
	Attempts           []FailoverAttempt `json:"attempts"`
	Error              string            `json:"error,omitempty"`
	ErrorCode          string            `json:"error_code,omitempty"`
}

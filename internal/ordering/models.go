package ordering

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPending   = "PENDING"
	StatusFulfilled = "FULFILLED"
	StatusFailed    = "FAILED"
)

// PurchaseOrder is the persisted record of one purchase request and its
// fulfillment outcome. FailoverAttempts holds the chronological ledger as a
// JSON array; it is written once at terminal state and never rewritten.
type PurchaseOrder struct {
	gorm.Model         `json:"-"`
	OrderID            string    `gorm:"uniqueIndex" json:"order_id"`
	ClientID           string    `json:"client_id"`
	TransactionID      string    `gorm:"index" json:"transaction_id"`
	PackageID          string    `json:"package_id"`
	Quantity           int       `json:"quantity"`
	CustomerEmail      string    `json:"customer_email"`
	CustomerName       string    `json:"customer_name"`
	Source             string    `json:"source"`
	PartnerRef         string    `json:"partner_ref"`
	WebhookURL         string    `json:"webhook_url"`
	Status             string    `json:"status"` // PENDING, FULFILLED, FAILED
	WholesaleTotal     float64   `json:"wholesale_total"`
	RetailTotal        float64   `json:"retail_total"`
	Currency           string    `json:"currency"`
	FailoverUsed       bool      `json:"failover_used"`
	OriginalProviderID string    `json:"original_provider_id"`
	FinalProviderID    string    `json:"final_provider_id"`
	ProviderOrderID    string    `json:"provider_order_id"`
	ICCID              string    `json:"iccid"`
	QRCode             string    `json:"qr_code"`
	QRCodeURL          string    `json:"qr_code_url"`
	SmdpAddress        string    `json:"smdp_address"`
	ActivationCode     string    `json:"activation_code"`
	ErrorCode          string    `json:"error_code"`
	ErrorMessage       string    `json:"error_message"`
	FailoverAttempts   string    `json:"failover_attempts"` // JSON array of attempts
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}

package ordering

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/auth"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/simfinity/connect-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles purchase order placement and retrieval
type Service struct {
	db     *Database
	engine *Engine
}

// NewService creates an ordering service backed by the given database
// connection and fulfillment engine
func NewService(gormDB *gorm.DB, engine *Engine) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		engine: engine,
	}
}

// PlaceOrder creates a purchase order with idempotency support and runs the
// fulfillment engine to its terminal state.
// Parameters:
//   - req: the purchase request; payment is assumed to be authorized already
//   - clientID: the authenticated API client placing the order
//   - idempotencyKey: unique key preventing duplicate placement
func (s *Service) PlaceOrder(req types.OrderRequest, clientID, idempotencyKey string) (*PurchaseOrder, error) {
	// Check for existing idempotency record
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err == nil && record != nil && record.ExpiresAt.After(time.Now()) {
		existing, err := s.db.GetPurchaseOrder(record.ResourceID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("purchase order not found")
		}
		return existing, nil
	}

	if req.Source == "" {
		req.Source = types.OrderSourceAPI
	}

	order := &PurchaseOrder{
		OrderID:       uuid.New().String(),
		ClientID:      clientID,
		TransactionID: req.TransactionID,
		PackageID:     req.UnifiedPackageID,
		Quantity:      req.Quantity,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Source:        req.Source,
		PartnerRef:    req.PartnerRef,
		WebhookURL:    req.WebhookURL,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.CreatePurchaseOrderWithIdempotency(order, idempotencyKey); err != nil {
		return nil, err
	}

	// The engine persists the provider assignment and ledger against this id
	// on terminal success.
	req.OrderID = order.OrderID

	result := s.engine.CreateOrder(req)
	s.applyResult(order, result)

	if err := s.db.UpdatePurchaseOrder(order); err != nil {
		log.Error().Err(err).
			Str("order_id", order.OrderID).
			Str("service", "ordering").
			Msg("failed to store terminal order state")
	}

	return order, nil
}

// GetOrder retrieves a purchase order by its ID
func (s *Service) GetOrder(orderID string) (*PurchaseOrder, error) {
	return s.db.GetPurchaseOrder(orderID)
}

// GetOrderByOrderIDAndClientID retrieves a purchase order scoped to a client
func (s *Service) GetOrderByOrderIDAndClientID(orderID, clientID string) (*PurchaseOrder, error) {
	return s.db.GetPurchaseOrderByOrderIDAndClientID(orderID, clientID)
}

func (s *Service) applyResult(order *PurchaseOrder, result *types.OrderResult) {
	order.UpdatedAt = time.Now()
	order.FailoverUsed = result.FailoverUsed
	order.OriginalProviderID = result.OriginalProviderID
	order.FinalProviderID = result.FinalProviderID
	order.ProviderOrderID = result.ProviderOrderID

	if ledger, err := json.Marshal(result.Attempts); err == nil {
		order.FailoverAttempts = string(ledger)
	}

	if result.Success {
		order.Status = StatusFulfilled
		if result.EsimDetails != nil {
			order.ICCID = result.EsimDetails.ICCID
			order.QRCode = result.EsimDetails.QRCode
			order.QRCodeURL = result.EsimDetails.QRCodeURL
			order.SmdpAddress = result.EsimDetails.SmdpAddress
			order.ActivationCode = result.EsimDetails.ActivationCode
		}
		return
	}

	order.Status = StatusFailed
	order.ErrorCode = result.ErrorCode
	order.ErrorMessage = result.Error
}

// StatusResponse converts a stored purchase order into its API shape
func (s *Service) StatusResponse(order *PurchaseOrder) types.OrderStatusResponse {
	var attempts []types.FailoverAttempt
	if order.FailoverAttempts != "" {
		if err := json.Unmarshal([]byte(order.FailoverAttempts), &attempts); err != nil {
			log.Warn().Err(err).
				Str("order_id", order.OrderID).
				Str("service", "ordering").
				Msg("failed to decode stored attempts ledger")
		}
	}
	if attempts == nil {
		attempts = []types.FailoverAttempt{}
	}

	resp := types.OrderStatusResponse{
		OrderID:            order.OrderID,
		ClientID:           order.ClientID,
		PackageID:          order.PackageID,
		Quantity:           order.Quantity,
		Status:             order.Status,
		FailoverUsed:       order.FailoverUsed,
		OriginalProviderID: order.OriginalProviderID,
		FinalProviderID:    order.FinalProviderID,
		ProviderOrderID:    order.ProviderOrderID,
		Attempts:           attempts,
		ErrorCode:          order.ErrorCode,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}

	if order.ICCID != "" {
		resp.EsimDetails = &types.EsimDetails{
			ICCID:          order.ICCID,
			QRCode:         order.QRCode,
			QRCodeURL:      order.QRCodeURL,
			SmdpAddress:    order.SmdpAddress,
			ActivationCode: order.ActivationCode,
		}
	}

	return resp
}

// GinHandlers contains HTTP handlers for purchase order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for ordering endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place purchase orders
// Requires a valid JWT token and idempotency key in headers
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}
		clientID := auth.GetClientID(claims)
		if clientID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.PlaceOrder(req, clientID, idempotencyKey)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, h.service.StatusResponse(order))
	}
}

// GetOrderStatusHandler handles GET requests to retrieve a purchase order
// Requires a valid JWT token
// URL parameter: order_id
func (h *GinHandlers) GetOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		clientID := auth.GetClientID(claims)
		if clientID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrderByOrderIDAndClientID(orderID, clientID)
		if err != nil || order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		response.Success(c, h.service.StatusResponse(order))
	}
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-monitor/internal/domain/entities"
	"crypto-price-monitor/internal/infrastructure/breaker"
)

// PriceData represents an individual coin quote in the response
// @Description Market data for a single coin
type PriceData struct {
	ID           string          `json:"id" example:"bitcoin"`                                  // CoinGecko coin id
	Symbol       string          `json:"symbol" example:"BTC"`                                  // Uppercase ticker symbol
	Name         string          `json:"name" example:"Bitcoin"`                                // Display name
	CurrentPrice decimal.Decimal `json:"current_price" swaggertype:"string" example:"67123.45"` // Price in the configured vs currency
	Change1h     *float64        `json:"price_change_percentage_1h,omitempty" example:"0.12"`
	Change24h    *float64        `json:"price_change_percentage_24h,omitempty" example:"1.52"`
	Change7d     *float64        `json:"price_change_percentage_7d,omitempty" example:"-3.4"`
	MarketCap    decimal.Decimal `json:"market_cap" swaggertype:"string" example:"1320000000000"`
	TotalVolume  decimal.Decimal `json:"total_volume" swaggertype:"string" example:"25000000000"`
	LastUpdated  time.Time       `json:"last_updated" example:"2024-05-01T12:00:00Z"`
	AgeSeconds   int64           `json:"age_seconds" example:"42"` // Seconds since the upstream last updated the quote
	Stale        bool            `json:"stale" example:"false"`    // True when older than the durable tier TTL
}

// PricesResponse represents the response from /api/v1/prices
// @Description Current prices, possibly stale, never an error for missing data
type PricesResponse struct {
	Prices      []PriceData `json:"prices"`
	Count       int         `json:"count" example:"5"`
	Stale       bool        `json:"stale" example:"false"` // True when any record is older than the durable tier TTL
	GeneratedAt time.Time   `json:"generated_at" example:"2024-05-01T12:00:42Z"`
}

// PriceResponse represents the response from /api/v1/prices/{id}
type PriceResponse struct {
	Price PriceData `json:"price"`
}

// StatsResponse represents the response from /api/v1/admin/stats
// @Description Operational state of the price subsystem
type StatsResponse struct {
	Stats   entities.SystemStats `json:"stats"`
	Breaker breaker.Snapshot     `json:"breaker"`
}

// ActionResponse represents the outcome of an admin operation
type ActionResponse struct {
	Action  string `json:"action" example:"refresh"`
	Status  string `json:"status" example:"ok" enums:"ok,skipped,failed"`
	Message string `json:"message,omitempty" example:"Forced price update completed"`
}

// ErrorResponse represents a standard error response for endpoints
// @Description Standard error response for endpoints
type ErrorResponse struct {
	Error   string `json:"error" example:"PRICE_NOT_FOUND"`                       // Main error message
	Message string `json:"message,omitempty" example:"No data for coin dogecoin"` // Detailed error description
	Code    string `json:"code,omitempty" example:"404"`                          // HTTP error code or internal code
}

// HealthResponse represents the health check response with service status
// @Description Health check response with service status
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy" enums:"healthy,ready,unhealthy"` // Overall service status
	Timestamp time.Time         `json:"timestamp" example:"2023-12-01T10:30:00Z"`                 // When the health check was performed
	Services  map[string]string `json:"services,omitempty" example:"store:ready,breaker:CLOSED"`  // Individual service statuses
}

// NewErrorResponse creates a new error response
func NewErrorResponse(error string, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   error,
		Message: message,
	}
}

// NewErrorResponseWithCode creates an error response with code
func NewErrorResponseWithCode(error string, message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:   error,
		Message: message,
		Code:    code,
	}
}

// NewHealthResponse creates a health check response
func NewHealthResponse(status string, services map[string]string) *HealthResponse {
	return &HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}

func NewActionResponse(action, status, message string) *ActionResponse {
	return &ActionResponse{Action: action, Status: status, Message: message}
}

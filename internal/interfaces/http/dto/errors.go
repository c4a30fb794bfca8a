package dto

import (
	"net/http"

	"github.com/rouna/storefront/internal/domain/shared"
)

// Error codes returned in the response envelope. Domain codes pass through
// unchanged so clients see the same code the service raised.
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request binding fails
	ErrCodeValidation = "VALIDATION_ERROR"

	ErrCodeInvalidInput        = shared.CodeInvalidInput
	ErrCodeItemNotFound        = shared.CodeItemNotFound
	ErrCodeNotFound            = shared.CodeNotFound
	ErrCodeInsufficientStock   = shared.CodeInsufficientStock
	ErrCodeInvalidTransition   = shared.CodeInvalidTransition
	ErrCodeForbidden           = shared.CodeForbidden
	ErrCodeConflict            = shared.CodeConflict
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"

	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Rejected input, including business rules the buyer can fix
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeInsufficientStock: http.StatusBadRequest,
	ErrCodeInvalidTransition: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeItemNotFound: http.StatusNotFound,

	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StockShortage describes the checkout line that could not be reserved
type StockShortage struct {
	LineIndex int    `json:"line_index"`
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// NewStockShortage converts the domain error into its wire form
func NewStockShortage(e *shared.InsufficientStockError) *StockShortage {
	return &StockShortage{
		LineIndex: e.LineIndex,
		ItemID:    e.ItemID,
		ItemName:  e.ItemName,
		Requested: e.Requested,
		Available: e.Available,
	}
}

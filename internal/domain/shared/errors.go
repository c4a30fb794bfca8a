package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared across the storefront domains
const (
	CodeNotFound          = "NOT_FOUND"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConflict          = "CONFLICT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrItemNotFound        = NewDomainError(CodeItemNotFound, "Item not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "Order status change is not allowed")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrDuplicateRequest    = NewDomainError(CodeConflict, "Request has already been processed")
)

// InsufficientStockError is returned when a reservation asks for more units
// than an item currently holds. LineIndex is -1 when the error is not tied to
// a checkout line.
type InsufficientStockError struct {
	*DomainError
	ItemID    string
	ItemName  string
	Requested int
	Available int
	LineIndex int
}

// NewInsufficientStockError creates an InsufficientStockError for a single item
func NewInsufficientStockError(itemID string, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		DomainError: NewDomainError(CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: requested %d, available %d", requested, available)),
		ItemID:    itemID,
		Requested: requested,
		Available: available,
		LineIndex: -1,
	}
}

// AtLine returns a copy of the error attributed to a checkout line
func (e *InsufficientStockError) AtLine(index int, itemName string) *InsufficientStockError {
	label := itemName
	if label == "" {
		label = e.ItemID
	}
	return &InsufficientStockError{
		DomainError: NewDomainError(CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock for %s (line %d): requested %d, available %d",
				label, index+1, e.Requested, e.Available)),
		ItemID:    e.ItemID,
		ItemName:  itemName,
		Requested: e.Requested,
		Available: e.Available,
		LineIndex: index,
	}
}

// Unwrap exposes the embedded DomainError to errors.As
func (e *InsufficientStockError) Unwrap() error {
	return e.DomainError
}

// IsNotFound reports whether err is a not-found domain error of any kind
func IsNotFound(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == CodeNotFound || de.Code == CodeItemNotFound
}

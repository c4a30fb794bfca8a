package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ListFilter narrows order listings
type ListFilter struct {
	shared.Filter
	Status        Status
	PaymentStatus PaymentStatus
	UserID        *uuid.UUID
	From          *time.Time
	To            *time.Time
}

// Repository persists orders together with their embedded lines
type Repository interface {
	// FindByID finds an order by ID, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate is FindByID holding a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindAll lists orders matching the filter, newest first, with the total count
	FindAll(ctx context.Context, filter ListFilter) ([]Order, int64, error)

	// Create inserts a new order and its embedded lines
	Create(ctx context.Context, o *Order) error

	// UpdateState persists the mutable fields (status, payment status,
	// tracking number, version) provided the stored status still equals
	// from. A concurrent change yields shared.ErrConcurrencyConflict.
	UpdateState(ctx context.Context, o *Order, from Status) error
}

// LineRepository persists projected order lines
type LineRepository interface {
	// ReplaceForOrder drops every line of the order and inserts lines
	ReplaceForOrder(ctx context.Context, orderID uuid.UUID, lines []*Line) error

	// FindByOrder lists the lines of an order by position
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Line, error)

	// FindByID finds a single line, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Line, error)

	// SaveReturn writes the return fields of a line provided the stored
	// return status still equals from. A concurrent return step yields
	// shared.ErrConcurrencyConflict.
	SaveReturn(ctx context.Context, l *Line, from ReturnStatus) error
}

// StatusCount is one bucket of the per-status breakdown
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// TopItem is a best-selling item aggregated over embedded order lines
type TopItem struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Stats is the admin dashboard aggregate
type Stats struct {
	TodayOrders  int64           `json:"today_orders"`
	MonthOrders  int64           `json:"month_orders"`
	YearOrders   int64           `json:"year_orders"`
	MonthRevenue decimal.Decimal `json:"month_revenue"`
	ByStatus     []StatusCount   `json:"orders_by_status"`
	TopItems     []TopItem       `json:"top_items"`
	TotalItems   int64           `json:"total_items"`
}

// StatsReader computes dashboard aggregates
type StatsReader interface {
	// Stats computes the aggregate relative to now
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

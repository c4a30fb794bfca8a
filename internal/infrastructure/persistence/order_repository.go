package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID finds an order by ID with its embedded items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var m models.OrderModel
	if err := r.db.WithContext(ctx).Preload("Items", preloadItems).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate locks the order row for the rest of the transaction
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var m models.OrderModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", preloadItems).
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists orders matching the filter
func (r *GormOrderRepository) FindAll(ctx context.Context, filter order.ListFilter) ([]order.Order, int64, error) {
	filter.Filter = filter.Normalize()

	filters := func(db *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.PaymentStatus != "" {
			db = db.Where("payment_status = ?", filter.PaymentStatus)
		}
		if filter.UserID != nil {
			db = db.Where("user_id = ?", *filter.UserID)
		}
		if filter.From != nil {
			db = db.Where("created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("created_at <= ?", *filter.To)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Scopes(filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortDir := ValidateSortOrder(filter.OrderDir)

	var ms []models.OrderModel
	if err := r.db.WithContext(ctx).
		Scopes(filters).
		Preload("Items", preloadItems).
		Order(fmt.Sprintf("%s %s", sortField, sortDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]order.Order, len(ms))
	for i := range ms {
		orders[i] = *ms[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts the order and its embedded items
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error
}

// UpdateState writes the mutable fields with a compare-and-swap on status
func (r *GormOrderRepository) UpdateState(ctx context.Context, o *order.Order, from order.Status) error {
	res := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", o.ID, from).
		Updates(map[string]any{
			"status":          o.Status,
			"payment_status":  o.PaymentStatus,
			"tracking_number": o.TrackingNumber,
			"version":         o.Version,
			"updated_at":      o.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Stats computes the admin dashboard aggregate
func (r *GormOrderRepository) Stats(ctx context.Context, now time.Time) (*order.Stats, error) {
	db := r.db.WithContext(ctx)
	loc := now.Location()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)

	stats := &order.Stats{
		ByStatus: []order.StatusCount{},
		TopItems: []order.TopItem{},
	}

	counts := []struct {
		since time.Time
		dst   *int64
	}{
		{dayStart, &stats.TodayOrders},
		{monthStart, &stats.MonthOrders},
		{yearStart, &stats.YearOrders},
	}
	for _, c := range counts {
		if err := db.Model(&models.OrderModel{}).Where("created_at >= ?", c.since).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
	}

	var revenue struct {
		Revenue decimal.NullDecimal
	}
	if err := db.Model(&models.OrderModel{}).
		Select("SUM(total) AS revenue").
		Where("created_at >= ? AND payment_status = ?", monthStart, order.PaymentPaid).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	stats.MonthRevenue = decimal.Zero
	if revenue.Revenue.Valid {
		stats.MonthRevenue = revenue.Revenue.Decimal
	}

	if err := db.Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&stats.ByStatus).Error; err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	if err := db.Table("order_items AS oi").
		Select("oi.item_id AS item_id, MAX(oi.name) AS name, SUM(oi.quantity) AS quantity, SUM(oi.total) AS revenue").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.status <> ?", order.StatusCancelled).
		Group("oi.item_id").
		Order("quantity DESC").
		Limit(5).
		Scan(&stats.TopItems).Error; err != nil {
		return nil, fmt.Errorf("top items: %w", err)
	}

	if err := db.Model(&models.ItemModel{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	return stats, nil
}

// GormOrderLineRepository implements order.LineRepository using GORM
type GormOrderLineRepository struct {
	db *gorm.DB
}

// NewGormOrderLineRepository creates a new GormOrderLineRepository
func NewGormOrderLineRepository(db *gorm.DB) *GormOrderLineRepository {
	return &GormOrderLineRepository{db: db}
}

// ReplaceForOrder swaps the projected lines of an order
func (r *GormOrderLineRepository) ReplaceForOrder(ctx context.Context, orderID uuid.UUID, lines []*order.Line) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderLineModel{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	ms := make([]*models.OrderLineModel, len(lines))
	for i, l := range lines {
		ms[i] = models.OrderLineModelFromDomain(l)
	}
	return db.Create(ms).Error
}

// FindByOrder lists the lines of an order
func (r *GormOrderLineRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.Line, error) {
	var ms []models.OrderLineModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("position ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	lines := make([]*order.Line, len(ms))
	for i := range ms {
		lines[i] = ms[i].ToDomain()
	}
	return lines, nil
}

// FindByID finds a single line
func (r *GormOrderLineRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Line, error) {
	var m models.OrderLineModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// SaveReturn writes the return fields with a compare-and-swap on return_status
func (r *GormOrderLineRepository) SaveReturn(ctx context.Context, l *order.Line, from order.ReturnStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.OrderLineModel{}).
		Where("id = ? AND return_status = ?", l.ID, from).
		Updates(map[string]any{
			"return_status":       l.ReturnStatus,
			"return_reason":       l.ReturnReason,
			"refund_amount":       l.RefundAmount,
			"return_requested_at": l.ReturnRequestedAt,
			"return_approved_at":  l.ReturnApprovedAt,
			"return_completed_at": l.ReturnCompletedAt,
			"updated_at":          l.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.OrderLineModel{}).Where("id = ?", l.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure implementations satisfy the order contracts
var (
	_ order.Repository     = (*GormOrderRepository)(nil)
	_ order.StatsReader    = (*GormOrderRepository)(nil)
	_ order.LineRepository = (*GormOrderLineRepository)(nil)
)

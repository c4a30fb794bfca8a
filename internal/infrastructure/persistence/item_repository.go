package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormItemRepository implements catalog.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	var m models.ItemModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrItemNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDs loads several items in one query
func (r *GormItemRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error) {
	result := make(map[uuid.UUID]*catalog.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var ms []models.ItemModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ms).Error; err != nil {
		return nil, err
	}
	for i := range ms {
		result[ms[i].ID] = ms[i].ToDomain()
	}
	return result, nil
}

// FindBySlug finds an item by its slug
func (r *GormItemRepository) FindBySlug(ctx context.Context, slug string) (*catalog.Item, error) {
	var m models.ItemModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrItemNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save creates or updates an item
func (r *GormItemRepository) Save(ctx context.Context, item *catalog.Item) error {
	return r.db.WithContext(ctx).Save(models.ItemModelFromDomain(item)).Error
}

// Count returns the number of catalog items
func (r *GormItemRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ItemModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// GormStockLedger implements catalog.StockLedger with conditional UPDATEs.
// The decrement and the availability check are one statement, so two
// concurrent reservations can never both succeed against the same units.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// Reserve decrements stock when at least qty units are available
func (l *GormStockLedger) Reserve(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity to reserve must be positive")
	}

	res := l.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ? AND stock >= ?", itemID, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("reserve stock: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing matched: either the item is gone or it holds too few units.
	var m models.ItemModel
	if err := l.db.WithContext(ctx).Select("id", "stock").Where("id = ?", itemID).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrItemNotFound
		}
		return fmt.Errorf("read stock: %w", err)
	}
	return shared.NewInsufficientStockError(itemID.String(), qty, m.Stock)
}

// Release adds qty units back
func (l *GormStockLedger) Release(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity to release must be positive")
	}

	res := l.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("release stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

// Ensure implementations satisfy the catalog contracts
var (
	_ catalog.ItemRepository = (*GormItemRepository)(nil)
	_ catalog.StockLedger    = (*GormStockLedger)(nil)
)

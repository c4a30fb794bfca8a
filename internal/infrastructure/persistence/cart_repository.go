package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartRepository implements cart.Repository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// FindByUser loads the user's cart with its lines in client order
func (r *GormCartRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	var m models.CartModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save upserts the cart row and replaces every line in one transaction.
// Concurrent writers for the same user resolve to the last commit.
func (r *GormCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	m := models.CartModelFromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(m).Error; err != nil {
			return err
		}

		// Another request may have created the row first; adopt its ID.
		var stored models.CartModel
		if err := tx.Select("id", "created_at").Where("user_id = ?", c.UserID).Take(&stored).Error; err != nil {
			return err
		}
		c.ID = stored.ID
		c.CreatedAt = stored.CreatedAt

		if err := tx.Where("cart_id = ?", c.ID).Delete(&models.CartLineModel{}).Error; err != nil {
			return err
		}
		if len(m.Lines) == 0 {
			return nil
		}
		for i := range m.Lines {
			m.Lines[i].CartID = c.ID
		}
		return tx.Create(&m.Lines).Error
	})
}

// ClearByUser deletes the lines of the user's cart
func (r *GormCartRepository) ClearByUser(ctx context.Context, userID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&models.CartModel{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("cart_id IN (?)", sub).Delete(&models.CartLineModel{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.CartModel{}).
			Where("user_id = ?", userID).
			Update("updated_at", time.Now()).Error
	})
}

// Ensure GormCartRepository implements cart.Repository
var _ cart.Repository = (*GormCartRepository)(nil)

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// CartModel is the persistence model for a user's server-side cart.
type CartModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Lines     []CartLineModel `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartModel) TableName() string {
	return "carts"
}

// CartLineModel is one line of a cart. Position keeps the client order.
type CartLineModel struct {
	ID       uuid.UUID       `gorm:"type:uuid;primary_key"`
	CartID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position int             `gorm:"not null"`
	ItemID   uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity int             `gorm:"not null"`
	Size     string          `gorm:"type:varchar(50)"`
	Color    string          `gorm:"type:varchar(50)"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AddedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartLineModel) TableName() string {
	return "cart_lines"
}

// ToDomain converts the persistence model to a domain Cart.
func (m *CartModel) ToDomain() *cart.Cart {
	c := &cart.Cart{
		ID:        m.ID,
		UserID:    m.UserID,
		Lines:     make([]cart.Line, 0, len(m.Lines)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, l := range m.Lines {
		c.Lines = append(c.Lines, cart.Line{
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
			Size:     l.Size,
			Color:    l.Color,
			Price:    l.Price,
			AddedAt:  l.AddedAt,
		})
	}
	return c
}

// CartModelFromDomain creates a persistence model, lines included.
func CartModelFromDomain(c *cart.Cart) *CartModel {
	m := &CartModel{
		ID:        c.ID,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Lines:     make([]CartLineModel, 0, len(c.Lines)),
	}
	for i, l := range c.Lines {
		m.Lines = append(m.Lines, CartLineModel{
			ID:       uuid.New(),
			CartID:   c.ID,
			Position: i,
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
			Size:     l.Size,
			Color:    l.Color,
			Price:    l.Price,
			AddedAt:  l.AddedAt,
		})
	}
	return m
}

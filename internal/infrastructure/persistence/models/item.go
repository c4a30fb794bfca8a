package models

import (
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ItemModel is the persistence model for the catalog Item.
type ItemModel struct {
	AggregateModel
	Name           string              `gorm:"type:varchar(200);not null"`
	Slug           string              `gorm:"type:varchar(220);not null;uniqueIndex"`
	SKU            string              `gorm:"column:sku;type:varchar(64);not null;uniqueIndex"`
	Price          decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	SalePrice      decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	IsOnSale       bool                `gorm:"not null"`
	Stock          int                 `gorm:"not null;check:stock >= 0"`
	MainImageURL   string              `gorm:"type:varchar(500)"`
	IsReturnable   bool                `gorm:"not null"`
	WarrantyMonths int                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *ItemModel) ToDomain() *catalog.Item {
	it := &catalog.Item{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Slug:              m.Slug,
		SKU:               m.SKU,
		Price:             m.Price,
		IsOnSale:          m.IsOnSale,
		Stock:             m.Stock,
		MainImageURL:      m.MainImageURL,
		IsReturnable:      m.IsReturnable,
		WarrantyMonths:    m.WarrantyMonths,
	}
	if m.SalePrice.Valid {
		sp := m.SalePrice.Decimal
		it.SalePrice = &sp
	}
	return it
}

// FromDomain populates the persistence model from a domain Item.
func (m *ItemModel) FromDomain(it *catalog.Item) {
	m.FromDomainAggregateRoot(it.BaseAggregateRoot)
	m.Name = it.Name
	m.Slug = it.Slug
	m.SKU = it.SKU
	m.Price = it.Price
	m.SalePrice = decimal.NullDecimal{}
	if it.SalePrice != nil {
		m.SalePrice = decimal.NewNullDecimal(*it.SalePrice)
	}
	m.IsOnSale = it.IsOnSale
	m.Stock = it.Stock
	m.MainImageURL = it.MainImageURL
	m.IsReturnable = it.IsReturnable
	m.WarrantyMonths = it.WarrantyMonths
}

// ItemModelFromDomain creates a new persistence model from a domain Item.
func ItemModelFromDomain(it *catalog.Item) *ItemModel {
	m := &ItemModel{}
	m.FromDomain(it)
	return m
}

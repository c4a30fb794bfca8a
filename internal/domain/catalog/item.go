package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Item is a sellable catalog entry. The catalog collaborator owns it; the
// fulfilment engine only reads it and moves its stock counter through the
// StockLedger.
type Item struct {
	shared.BaseAggregateRoot
	Name           string
	Slug           string
	SKU            string
	Price          decimal.Decimal
	SalePrice      *decimal.Decimal
	IsOnSale       bool
	Stock          int
	MainImageURL   string
	IsReturnable   bool
	WarrantyMonths int
}

// NewItem creates a new catalog item
func NewItem(name, sku string, price decimal.Decimal, stock int) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot exceed 200 characters")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if stock < 0 {
		return nil, shared.NewDomainError("INVALID_STOCK", "Stock cannot be negative")
	}

	return &Item{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Slug:              Slugify(name),
		SKU:               strings.ToUpper(strings.TrimSpace(sku)),
		Price:             price,
		Stock:             stock,
		IsReturnable:      true,
	}, nil
}

// PutOnSale marks the item as discounted. The sale price must be strictly
// lower than the regular price.
func (i *Item) PutOnSale(salePrice decimal.Decimal) error {
	if salePrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Sale price cannot be negative")
	}
	if !salePrice.LessThan(i.Price) {
		return shared.NewDomainError("INVALID_PRICE", "Sale price must be lower than the regular price")
	}
	sp := salePrice
	i.SalePrice = &sp
	i.IsOnSale = true
	i.UpdatedAt = time.Now()
	return nil
}

// EndSale removes the sale flag but keeps the last sale price for reference
func (i *Item) EndSale() {
	i.IsOnSale = false
	i.UpdatedAt = time.Now()
}

// EffectivePrice is the unit price a buyer pays right now
func (i *Item) EffectivePrice() decimal.Decimal {
	if i.IsOnSale && i.SalePrice != nil {
		return *i.SalePrice
	}
	return i.Price
}

// HasStock reports whether qty units could be reserved at this moment.
// Callers must not rely on it for reservation; StockLedger.Reserve is the
// only authoritative check.
func (i *Item) HasStock(qty int) bool {
	return qty > 0 && i.Stock >= qty
}

// ClampQuantity limits qty to what is currently in stock
func (i *Item) ClampQuantity(qty int) int {
	if qty > i.Stock {
		return i.Stock
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// StockSnapshot is the read-model answer to "how many units are left"
type StockSnapshot struct {
	ItemID    uuid.UUID
	Available int
}

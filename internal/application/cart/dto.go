package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// LineInput is one line as the client holds it
type LineInput struct {
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1,max=999"`
	Size     string    `json:"size" binding:"max=50"`
	Color    string    `json:"color" binding:"max=50"`
}

// SyncCartRequest overwrites the cart with the given lines
type SyncCartRequest struct {
	Lines []LineInput `json:"lines" binding:"omitempty,dive"`
}

// MergeCartRequest reconciles a login with the local and guest carts
type MergeCartRequest struct {
	GuestToken string      `json:"guest_token" binding:"omitempty,max=128"`
	Lines      []LineInput `json:"lines" binding:"omitempty,dive"`
}

// UpdateLineRequest patches a single cart line
type UpdateLineRequest struct {
	Quantity *int    `json:"quantity" binding:"omitempty,min=1,max=999"`
	Size     *string `json:"size" binding:"omitempty,max=50"`
	Color    *string `json:"color" binding:"omitempty,max=50"`
}

// ItemSummary is the catalog view attached to a cart line
type ItemSummary struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	IsOnSale  bool             `json:"is_on_sale"`
	Image     string           `json:"image,omitempty"`
	Stock     int              `json:"stock"`
}

// LineResponse is a cart line enriched with its item
type LineResponse struct {
	Index    int             `json:"index"`
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	AddedAt  time.Time       `json:"added_at"`
	Item     ItemSummary     `json:"item"`
}

// CartResponse is the cart as returned to the client
type CartResponse struct {
	Lines         []LineResponse  `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

func toItemSummary(it *catalog.Item) ItemSummary {
	return ItemSummary{
		ID:        it.ID,
		Name:      it.Name,
		Slug:      it.Slug,
		Price:     it.Price,
		SalePrice: it.SalePrice,
		IsOnSale:  it.IsOnSale,
		Image:     it.MainImageURL,
		Stock:     it.Stock,
	}
}

// toCartResponse lists the lines whose item still exists. Index is the
// position in the stored cart so clients can address UpdateLine/RemoveLine.
func toCartResponse(lines []cart.Line, items map[uuid.UUID]*catalog.Item, updatedAt *time.Time) *CartResponse {
	resp := &CartResponse{
		Lines:     make([]LineResponse, 0, len(lines)),
		Subtotal:  decimal.Zero,
		UpdatedAt: updatedAt,
	}
	for i, l := range lines {
		it, ok := items[l.ItemID]
		if !ok {
			continue
		}
		resp.Lines = append(resp.Lines, LineResponse{
			Index:    i,
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
			Size:     l.Size,
			Color:    l.Color,
			Price:    l.Price,
			Total:    l.Total(),
			AddedAt:  l.AddedAt,
			Item:     toItemSummary(it),
		})
		resp.TotalQuantity += l.Quantity
		resp.Subtotal = resp.Subtotal.Add(l.Total())
	}
	return resp
}

package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps a single cart line
const MaxLineQuantity = 999

// Line is one intended purchase. Price is the unit price captured when the
// line was added or last synchronised.
type Line struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Price    decimal.Decimal `json:"price"`
	AddedAt  time.Time       `json:"added_at"`
}

// LineKey identifies a line for merge purposes
type LineKey struct {
	ItemID uuid.UUID
	Size   string
	Color  string
}

// Key returns the merge key of the line
func (l Line) Key() LineKey {
	return LineKey{ItemID: l.ItemID, Size: l.Size, Color: l.Color}
}

// Total returns price * quantity
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewLine validates and creates a cart line
func NewLine(itemID uuid.UUID, quantity int, size, color string, price decimal.Decimal) (Line, error) {
	if itemID == uuid.Nil {
		return Line{}, shared.NewDomainError(shared.CodeInvalidInput, "Cart line must reference an item")
	}
	if err := validateQuantity(quantity); err != nil {
		return Line{}, err
	}
	return Line{
		ItemID:   itemID,
		Quantity: quantity,
		Size:     size,
		Color:    color,
		Price:    price,
		AddedAt:  time.Now(),
	}, nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity cannot exceed 999")
	}
	return nil
}

// Cart is the server-side cart of one identity. Authenticated carts are keyed
// by UserID; guest carts carry uuid.Nil and live in the guest cart store.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCart creates an empty cart for a user
func NewCart(userID uuid.UUID) *Cart {
	now := time.Now()
	return &Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Lines:     make([]Line, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// TotalQuantity sums quantities across lines
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Subtotal sums the snapshot totals of all lines
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Replace overwrites the line list (last writer wins)
func (c *Cart) Replace(lines []Line) {
	c.Lines = append(make([]Line, 0, len(lines)), lines...)
	c.UpdatedAt = time.Now()
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Lines = make([]Line, 0)
	c.UpdatedAt = time.Now()
}

// LinePatch carries optional changes for UpdateLine
type LinePatch struct {
	Quantity *int
	Size     *string
	Color    *string
}

// UpdateLine applies a patch to the line at index. A patch that would
// give the line the key of another line is rejected.
func (c *Cart) UpdateLine(index int, patch LinePatch) error {
	if index < 0 || index >= len(c.Lines) {
		return shared.NewDomainError(shared.CodeNotFound, "Cart line not found")
	}
	line := c.Lines[index]
	if patch.Quantity != nil {
		if err := validateQuantity(*patch.Quantity); err != nil {
			return err
		}
		line.Quantity = *patch.Quantity
	}
	if patch.Size != nil {
		line.Size = *patch.Size
	}
	if patch.Color != nil {
		line.Color = *patch.Color
	}
	for i, other := range c.Lines {
		if i != index && other.Key() == line.Key() {
			return shared.NewDomainError(shared.CodeConflict, "Another cart line already holds this item, size and color")
		}
	}
	c.Lines[index] = line
	c.UpdatedAt = time.Now()
	return nil
}

// RemoveLine drops the line at index
func (c *Cart) RemoveLine(index int) error {
	if index < 0 || index >= len(c.Lines) {
		return shared.NewDomainError(shared.CodeNotFound, "Cart line not found")
	}
	c.Lines = append(c.Lines[:index:index], c.Lines[index+1:]...)
	c.UpdatedAt = time.Now()
	return nil
}

package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository reads and stores catalog items
type ItemRepository interface {
	// FindByID finds an item by ID, returning shared.ErrItemNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindByIDs loads several items at once; missing IDs are simply absent from the map
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Item, error)

	// FindBySlug finds an item by its slug
	FindBySlug(ctx context.Context, slug string) (*Item, error)

	// Save creates or updates an item (catalog seeding and tests)
	Save(ctx context.Context, item *Item) error

	// Count returns the number of items in the catalog
	Count(ctx context.Context) (int64, error)
}

// StockLedger is the single entry point for stock mutation.
// Reserve decrements atomically and never lets stock go negative;
// Release is unconditionally additive.
type StockLedger interface {
	// Reserve takes qty units from the item. It returns
	// *shared.InsufficientStockError (with the available quantity) when the
	// item holds fewer than qty units, and applies no change in that case.
	Reserve(ctx context.Context, itemID uuid.UUID, qty int) error

	// Release puts qty units back on the item
	Release(ctx context.Context, itemID uuid.UUID, qty int) error
}

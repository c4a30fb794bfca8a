package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists authenticated users' carts. There is at most one cart
// per user.
type Repository interface {
	// FindByUser returns the user's cart or shared.ErrNotFound
	FindByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)

	// Save upserts the cart and replaces its lines in full
	Save(ctx context.Context, c *Cart) error

	// ClearByUser removes every line of the user's cart, if one exists
	ClearByUser(ctx context.Context, userID uuid.UUID) error
}

// GuestStore holds carts built before authentication, keyed by the
// device token the client generated.
type GuestStore interface {
	// Get returns the guest lines for token, or nil when there are none
	Get(ctx context.Context, token string) ([]Line, error)

	// Put overwrites the guest lines for token
	Put(ctx context.Context, token string, lines []Line) error

	// Delete discards the guest cart for token
	Delete(ctx context.Context, token string) error
}

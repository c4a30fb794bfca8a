package order

import (
	"context"

	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/order"
)

// TransactionalRepositories exposes the repositories bound to one
// database transaction.
type TransactionalRepositories interface {
	Items() catalog.ItemRepository
	Stock() catalog.StockLedger
	Orders() order.Repository
	Lines() order.LineRepository
}

// TransactionScope runs fn atomically. Any error returned by fn rolls back
// every stock movement and write performed through repos.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

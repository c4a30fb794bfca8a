package persistence

import (
	"context"

	apporder "github.com/rouna/storefront/internal/application/order"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/order"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apporder.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Items returns the item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Items() catalog.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// Stock returns the stock ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) Stock() catalog.StockLedger {
	return NewGormStockLedger(r.tx)
}

// Orders returns the order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Orders() order.Repository {
	return NewGormOrderRepository(r.tx)
}

// Lines returns the order line repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Lines() order.LineRepository {
	return NewGormOrderLineRepository(r.tx)
}

var (
	_ apporder.TransactionScope          = (*GormTransactionScope)(nil)
	_ apporder.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)

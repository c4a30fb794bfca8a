// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - item.go: catalog items (read model plus the stock counter)
//   - cart.go: per-user carts and their lines
//   - order.go: orders, their embedded items and the projected order lines
package models

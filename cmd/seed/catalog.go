package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML layout of a seed file
type catalogFile struct {
	Items []itemSpec `yaml:"items"`
}

type itemSpec struct {
	Name           string `yaml:"name"`
	SKU            string `yaml:"sku"`
	Price          string `yaml:"price"`
	SalePrice      string `yaml:"sale_price"`
	Stock          int    `yaml:"stock"`
	Image          string `yaml:"image"`
	Returnable     *bool  `yaml:"returnable"`
	WarrantyMonths int    `yaml:"warranty_months"`
}

// loadCatalog parses a seed file into items. Prices are strings so that
// "19.90" never passes through a float.
func loadCatalog(r io.Reader) ([]*catalog.Item, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	items := make([]*catalog.Item, 0, len(file.Items))
	seen := make(map[string]int, len(file.Items))
	for i, entry := range file.Items {
		item, err := entry.toItem()
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, entry.Name, err)
		}
		if prev, dup := seen[item.Slug]; dup {
			return nil, fmt.Errorf("item %d (%s): slug %q already used by item %d", i, entry.Name, item.Slug, prev)
		}
		seen[item.Slug] = i
		items = append(items, item)
	}
	return items, nil
}

func (s itemSpec) toItem() (*catalog.Item, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s.Price)
	}
	item, err := catalog.NewItem(s.Name, s.SKU, price, s.Stock)
	if err != nil {
		return nil, err
	}
	if s.SalePrice != "" {
		sale, err := decimal.NewFromString(s.SalePrice)
		if err != nil {
			return nil, fmt.Errorf("invalid sale_price %q", s.SalePrice)
		}
		if err := item.PutOnSale(sale); err != nil {
			return nil, err
		}
	}
	item.MainImageURL = s.Image
	if s.Returnable != nil {
		item.IsReturnable = *s.Returnable
	}
	if s.WarrantyMonths < 0 {
		return nil, errors.New("warranty_months cannot be negative")
	}
	item.WarrantyMonths = s.WarrantyMonths
	return item, nil
}

// itemStore is the slice of the item repository the seeder writes through
type itemStore interface {
	FindBySlug(ctx context.Context, slug string) (*catalog.Item, error)
	Save(ctx context.Context, item *catalog.Item) error
}

type seedResult struct {
	Created int
	Updated int
}

// seedItems upserts items by slug. An existing item keeps its ID, so
// carts and order lines that point at it stay valid.
func seedItems(ctx context.Context, store itemStore, items []*catalog.Item) (seedResult, error) {
	var res seedResult
	for _, item := range items {
		existing, err := store.FindBySlug(ctx, item.Slug)
		switch {
		case errors.Is(err, shared.ErrItemNotFound):
			res.Created++
		case err != nil:
			return res, fmt.Errorf("failed to look up %s: %w", item.Slug, err)
		default:
			item.ID = existing.ID
			item.CreatedAt = existing.CreatedAt
			item.Version = existing.Version
			res.Updated++
		}
		if err := store.Save(ctx, item); err != nil {
			return res, fmt.Errorf("failed to save %s: %w", item.Slug, err)
		}
	}
	return res, nil
}

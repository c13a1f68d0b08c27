package tools

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by the catalog read API.
type Product struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     int             `json:"in_stock"`
}

// Zone is a delivery area with its fee and estimated time.
type Zone struct {
	Name       string          `json:"name"`
	Fee        decimal.Decimal `json:"fee"`
	EtaMinutes int             `json:"eta_minutes"`
}

// Catalog is the read contract against the platform's catalog/inventory
// service. Product CRUD itself lives outside this codebase.
type Catalog interface {
	Search(ctx context.Context, tenantID, query string, limit int) ([]Product, error)
	BySKU(ctx context.Context, tenantID, sku string) (*Product, error)
	ResolveZone(ctx context.Context, tenantID, address string) (*Zone, error)
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type searchProductsParams struct {
	Query string `json:"query" validate:"required,min=1"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type checkAvailabilityParams struct {
	SKUs []string `json:"skus" validate:"required,min=1,max=20,dive,required"`
}

type addressParams struct {
	Address string `json:"address" validate:"required,min=3"`
}

func (r *Registry) registerCatalogTools() {
	r.add(tool{
		name:        "search_products",
		description: "Search the tenant's product catalog by free-text query.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "What the customer is looking for."},
				"limit": map[string]any{"type": "integer", "description": "Maximum results, default 5."},
			},
			"required": []string{"query"},
		},
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p searchProductsParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}
			if p.Limit == 0 {
				p.Limit = 5
			}
			products, err := r.deps.Catalog.Search(ctx, inv.TenantID, p.Query, p.Limit)
			if err != nil {
				return nil, fmt.Errorf("catalog search failed: %v", err)
			}
			return map[string]any{"products": products}, nil
		},
	})

	r.add(tool{
		name:        "check_availability",
		description: "Check current stock for a list of product SKUs.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"skus": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"skus"},
		},
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p checkAvailabilityParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}
			stock := make(map[string]int, len(p.SKUs))
			for _, sku := range p.SKUs {
				prod, err := r.deps.Catalog.BySKU(ctx, inv.TenantID, sku)
				if err != nil {
					return nil, fmt.Errorf("unknown product %q", sku)
				}
				stock[sku] = prod.InStock
			}
			return map[string]any{"stock": stock}, nil
		},
	})

	r.add(tool{
		name:        "lookup_delivery_zone",
		description: "Resolve which delivery zone serves an address.",
		parameters:  addressSchema(),
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p addressParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}
			zone, err := r.deps.Catalog.ResolveZone(ctx, inv.TenantID, p.Address)
			if err != nil {
				return nil, fmt.Errorf("address is outside our delivery area")
			}
			return map[string]any{"zone": zone.Name, "eta_minutes": zone.EtaMinutes}, nil
		},
	})

	r.add(tool{
		name:        "quote_delivery",
		description: "Quote the delivery fee and ETA for an address.",
		parameters:  addressSchema(),
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p addressParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}
			zone, err := r.deps.Catalog.ResolveZone(ctx, inv.TenantID, p.Address)
			if err != nil {
				return nil, fmt.Errorf("address is outside our delivery area")
			}
			return map[string]any{
				"zone":        zone.Name,
				"fee":         zone.Fee,
				"eta_minutes": zone.EtaMinutes,
			}, nil
		},
	})
}

func addressSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"address": map[string]any{"type": "string", "description": "Full delivery address."},
		},
		"required": []string{"address"},
	}
}

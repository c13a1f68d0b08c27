package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chatorder/platform/internal/store"
)

type orderItemParams struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

type createOrderParams struct {
	Items   []orderItemParams `json:"items" validate:"required,min=1,max=30,dive"`
	Address string            `json:"address" validate:"omitempty,min=3"`
	Notes   string            `json:"notes" validate:"omitempty,max=500"`
}

type updateOrderParams struct {
	OrderID string            `json:"order_id" validate:"required,uuid4"`
	Items   []orderItemParams `json:"items" validate:"required,min=1,max=30,dive"`
}

type cancelOrderParams struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

func (r *Registry) registerOrderTools() {
	r.add(tool{
		name: "create_order",
		description: "Place a new order for the customer. Verifies stock and " +
			"returns the order id and total. Quantities must already be agreed with the customer.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"sku":      map[string]any{"type": "string"},
							"quantity": map[string]any{"type": "integer", "minimum": 1},
						},
						"required": []string{"sku", "quantity"},
					},
				},
				"address": map[string]any{"type": "string", "description": "Delivery address; omit for pickup."},
				"notes":   map[string]any{"type": "string"},
			},
			"required": []string{"items"},
		},
		run: r.createOrder,
	})

	r.add(tool{
		name:        "update_order",
		description: "Replace the items of a placed order that has not been delivered or canceled.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"order_id": map[string]any{"type": "string"},
				"items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"sku":      map[string]any{"type": "string"},
							"quantity": map[string]any{"type": "integer", "minimum": 1},
						},
						"required": []string{"sku", "quantity"},
					},
				},
			},
			"required": []string{"order_id", "items"},
		},
		run: r.updateOrder,
	})

	r.add(tool{
		name:        "cancel_order",
		description: "Cancel a placed order on the customer's request.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"order_id": map[string]any{"type": "string"},
			},
			"required": []string{"order_id"},
		},
		run: r.cancelOrder,
	})
}

// priceItems resolves every line against the catalog and fails before any
// write when an item is unknown or out of stock.
func (r *Registry) priceItems(ctx context.Context, tenantID string, items []orderItemParams) ([]store.OrderItem, decimal.Decimal, error) {
	lines := make([]store.OrderItem, 0, len(items))
	subtotal := decimal.Zero
	for _, it := range items {
		prod, err := r.deps.Catalog.BySKU(ctx, tenantID, it.SKU)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("unknown product %q", it.SKU)
		}
		if prod.InStock < it.Quantity {
			return nil, decimal.Zero, fmt.Errorf("%s is out of stock (requested %d, available %d)",
				prod.Name, it.Quantity, prod.InStock)
		}
		lines = append(lines, store.OrderItem{
			SKU:       prod.SKU,
			Name:      prod.Name,
			Quantity:  it.Quantity,
			UnitPrice: prod.Price,
		})
		subtotal = subtotal.Add(prod.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return lines, subtotal, nil
}

func (r *Registry) createOrder(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
	var p createOrderParams
	if err := r.decode(raw, &p); err != nil {
		return nil, err
	}

	lines, subtotal, err := r.priceItems(ctx, inv.TenantID, p.Items)
	if err != nil {
		return nil, err
	}

	fee := decimal.Zero
	zoneName := ""
	if p.Address != "" {
		zone, err := r.deps.Catalog.ResolveZone(ctx, inv.TenantID, p.Address)
		if err != nil {
			return nil, fmt.Errorf("address is outside our delivery area")
		}
		fee = zone.Fee
		zoneName = zone.Name
	}

	order := &store.Order{
		OrderID:      uuid.NewString(),
		TenantID:     inv.TenantID,
		CustomerID:   inv.CustomerID,
		Status:       store.OrderPlaced,
		Items:        lines,
		Subtotal:     subtotal,
		DeliveryFee:  fee,
		Total:        subtotal.Add(fee),
		DeliveryZone: zoneName,
		Address:      p.Address,
		Notes:        p.Notes,
	}
	if err := r.deps.Store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("could not place the order, please try again")
	}

	return map[string]any{
		"order_id": order.OrderID,
		"total":    order.Total,
		"status":   order.Status,
	}, nil
}

func (r *Registry) updateOrder(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
	var p updateOrderParams
	if err := r.decode(raw, &p); err != nil {
		return nil, err
	}

	order, err := r.deps.Store.OrderByID(ctx, inv.TenantID, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("order %s not found", p.OrderID)
	}
	if order.CustomerID != inv.CustomerID {
		return nil, fmt.Errorf("order %s not found", p.OrderID)
	}
	if order.Status != store.OrderPlaced {
		return nil, fmt.Errorf("order is %s and can no longer be changed", order.Status)
	}

	lines, subtotal, err := r.priceItems(ctx, inv.TenantID, p.Items)
	if err != nil {
		return nil, err
	}

	order.Items = lines
	order.Subtotal = subtotal
	order.Total = subtotal.Add(order.DeliveryFee)
	if err := r.deps.Store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("could not update the order, please try again")
	}

	return map[string]any{
		"order_id": order.OrderID,
		"total":    order.Total,
		"status":   order.Status,
	}, nil
}

func (r *Registry) cancelOrder(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
	var p cancelOrderParams
	if err := r.decode(raw, &p); err != nil {
		return nil, err
	}

	order, err := r.deps.Store.OrderByID(ctx, inv.TenantID, p.OrderID)
	if err != nil || order.CustomerID != inv.CustomerID {
		return nil, fmt.Errorf("order %s not found", p.OrderID)
	}
	if order.Status == store.OrderCanceled {
		return map[string]any{"order_id": order.OrderID, "status": order.Status}, nil
	}
	if order.Status == store.OrderDelivered {
		return nil, fmt.Errorf("order has already been delivered")
	}

	if err := r.deps.Store.MarkOrderStatus(ctx, inv.TenantID, p.OrderID, store.OrderCanceled); err != nil {
		return nil, fmt.Errorf("could not cancel the order, please try again")
	}
	return map[string]any{"order_id": order.OrderID, "status": store.OrderCanceled}, nil
}

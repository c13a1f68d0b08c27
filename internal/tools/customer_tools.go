package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type updateCustomerParams struct {
	Name    string `json:"name" validate:"omitempty,max=128"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=256"`
}

func (r *Registry) registerCustomerTools() {
	r.add(tool{
		name:        "get_customer_profile",
		description: "Read the customer's saved profile (name, phone, default address).",
		parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		run: func(ctx context.Context, inv Invocation, _ json.RawMessage) (any, error) {
			c, err := r.deps.Store.CustomerByID(ctx, inv.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("customer profile unavailable")
			}
			return map[string]any{
				"name":    c.Name,
				"phone":   c.Phone,
				"address": c.Address,
			}, nil
		},
	})

	r.add(tool{
		name:        "update_customer_profile",
		description: "Update the customer's saved profile. Only provided fields change.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string"},
				"phone":   map[string]any{"type": "string"},
				"address": map[string]any{"type": "string"},
			},
		},
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p updateCustomerParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}

			c, err := r.deps.Store.CustomerByID(ctx, inv.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("customer profile unavailable")
			}
			if p.Name != "" {
				c.Name = p.Name
			}
			if p.Phone != "" {
				c.Phone = p.Phone
			}
			if p.Address != "" {
				c.Address = p.Address
			}
			if err := r.deps.Store.UpdateCustomer(ctx, c); err != nil {
				return nil, fmt.Errorf("could not save the profile, please try again")
			}
			return map[string]any{"updated": true}, nil
		},
	})
}

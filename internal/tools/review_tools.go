package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chatorder/platform/internal/store"
)

type createReviewParams struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

func (r *Registry) registerReviewTools() {
	r.add(tool{
		name:        "create_review",
		description: "Record the customer's review of a delivered order. Rating is 1 to 5.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"order_id": map[string]any{"type": "string"},
				"rating":   map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
				"comment":  map[string]any{"type": "string"},
			},
			"required": []string{"order_id", "rating"},
		},
		run: func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error) {
			var p createReviewParams
			if err := r.decode(raw, &p); err != nil {
				return nil, err
			}

			order, err := r.deps.Store.OrderByID(ctx, inv.TenantID, p.OrderID)
			if err != nil || order.CustomerID != inv.CustomerID {
				return nil, fmt.Errorf("order %s not found", p.OrderID)
			}
			if order.Reviewed {
				return nil, fmt.Errorf("this order has already been reviewed")
			}

			rev := &store.Review{
				ReviewID:   uuid.NewString(),
				OrderID:    order.OrderID,
				TenantID:   inv.TenantID,
				CustomerID: inv.CustomerID,
				Rating:     p.Rating,
				Comment:    p.Comment,
			}
			if err := r.deps.Store.CreateReview(ctx, rev); err != nil {
				return nil, fmt.Errorf("could not save the review, please try again")
			}
			return map[string]any{"review_id": rev.ReviewID, "thanks": true}, nil
		},
	})
}

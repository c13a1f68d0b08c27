package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatorder/platform/internal/store"
)

// fakeCatalog serves a fixed product table from memory.
type fakeCatalog struct {
	products map[string]Product
	zones    map[string]Zone
}

func (c *fakeCatalog) Search(_ context.Context, _, _ string, _ int) ([]Product, error) {
	var out []Product
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalog) BySKU(_ context.Context, _ string, sku string) (*Product, error) {
	p, ok := c.products[sku]
	if !ok {
		return nil, fmt.Errorf("sku %q not found", sku)
	}
	return &p, nil
}

func (c *fakeCatalog) ResolveZone(_ context.Context, _ string, address string) (*Zone, error) {
	z, ok := c.zones[address]
	if !ok {
		return nil, fmt.Errorf("no zone covers %q", address)
	}
	return &z, nil
}

func newTestRegistry(t *testing.T) (*Registry, *store.Repo, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.Tenant{}, &store.Customer{}, &store.Order{}, &store.Review{}))
	repo := store.NewRepo(db)

	cat := &fakeCatalog{
		products: map[string]Product{
			"burger": {SKU: "burger", Name: "Burger", Price: decimal.NewFromFloat(9.50), InStock: 10},
			"fries":  {SKU: "fries", Name: "Fries", Price: decimal.NewFromFloat(3.25), InStock: 1},
		},
		zones: map[string]Zone{
			"12 main st": {Name: "downtown", Fee: decimal.NewFromFloat(2.00), EtaMinutes: 30},
		},
	}
	return NewRegistry(Deps{Catalog: cat, Store: repo, Log: zap.NewNop()}), repo, db
}

func decodeResult(t *testing.T, res string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res), &out))
	return out
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	res := reg.Execute(context.Background(), Invocation{TenantID: "t1"}, "launch_rocket", nil)
	out := decodeResult(t, res)
	require.Contains(t, out["error"], "unknown tool")
}

func TestExecuteMalformedArguments(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	inv := Invocation{TenantID: "t1", CustomerID: 1}

	res := reg.Execute(context.Background(), inv, "create_order", json.RawMessage(`{"items": "not an array"`))
	out := decodeResult(t, res)
	require.Contains(t, out["error"], "invalid arguments")

	// Valid JSON failing schema validation is the same class of error.
	res = reg.Execute(context.Background(), inv, "create_order", json.RawMessage(`{"items": []}`))
	out = decodeResult(t, res)
	require.Contains(t, out["error"], "invalid arguments")
}

func TestCreateOrderHappyPath(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	inv := Invocation{TenantID: "t-order", CustomerID: 42}

	args := json.RawMessage(`{"items":[{"sku":"burger","quantity":2}],"address":"12 main st"}`)
	res := reg.Execute(context.Background(), inv, "create_order", args)
	out := decodeResult(t, res)
	require.NotContains(t, out, "error")

	orderID, _ := out["order_id"].(string)
	require.NotEmpty(t, orderID)

	order, err := repo.OrderByID(context.Background(), "t-order", orderID)
	require.NoError(t, err)
	require.Equal(t, store.OrderPlaced, order.Status)
	require.Equal(t, uint64(42), order.CustomerID)
	// 2 x 9.50 + 2.00 delivery.
	require.True(t, order.Total.Equal(decimal.NewFromFloat(21.00)), "total = %s", order.Total)
	require.Equal(t, "downtown", order.DeliveryZone)
}

func TestCreateOrderOutOfStockWritesNothing(t *testing.T) {
	reg, _, db := newTestRegistry(t)
	inv := Invocation{TenantID: "t-stock", CustomerID: 1}

	args := json.RawMessage(`{"items":[{"sku":"burger","quantity":1},{"sku":"fries","quantity":5}]}`)
	res := reg.Execute(context.Background(), inv, "create_order", args)
	out := decodeResult(t, res)
	require.Contains(t, out["error"], "out of stock")
	require.Contains(t, out["error"], "requested 5, available 1")

	// The in-stock line must not have produced a partial order.
	var count int64
	require.NoError(t, db.Model(&store.Order{}).Where("tenant_id = ?", "t-stock").Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateOrderChecksOwnershipAndStatus(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()
	inv := Invocation{TenantID: "t-upd", CustomerID: 5}

	res := reg.Execute(ctx, inv, "create_order", json.RawMessage(`{"items":[{"sku":"burger","quantity":1}]}`))
	orderID := decodeResult(t, res)["order_id"].(string)

	// Another customer cannot touch it.
	stranger := Invocation{TenantID: "t-upd", CustomerID: 6}
	res = reg.Execute(ctx, stranger, "update_order",
		json.RawMessage(`{"order_id":"`+orderID+`","items":[{"sku":"fries","quantity":1}]}`))
	require.Contains(t, decodeResult(t, res)["error"], "not found")

	// The owner can, while the order is still placed.
	res = reg.Execute(ctx, inv, "update_order",
		json.RawMessage(`{"order_id":"`+orderID+`","items":[{"sku":"burger","quantity":3}]}`))
	out := decodeResult(t, res)
	require.NotContains(t, out, "error")

	// Once delivered, it is frozen.
	require.NoError(t, repo.MarkOrderStatus(ctx, "t-upd", orderID, store.OrderDelivered))
	res = reg.Execute(ctx, inv, "update_order",
		json.RawMessage(`{"order_id":"`+orderID+`","items":[{"sku":"burger","quantity":1}]}`))
	require.Contains(t, decodeResult(t, res)["error"], "can no longer be changed")
}

func TestCancelOrderIsIdempotent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()
	inv := Invocation{TenantID: "t-cancel", CustomerID: 2}

	res := reg.Execute(ctx, inv, "create_order", json.RawMessage(`{"items":[{"sku":"burger","quantity":1}]}`))
	orderID := decodeResult(t, res)["order_id"].(string)

	cancelArgs := json.RawMessage(`{"order_id":"` + orderID + `"}`)
	out := decodeResult(t, reg.Execute(ctx, inv, "cancel_order", cancelArgs))
	require.Equal(t, store.OrderCanceled, out["status"])

	// A second cancel reports the same state instead of erroring.
	out = decodeResult(t, reg.Execute(ctx, inv, "cancel_order", cancelArgs))
	require.Equal(t, store.OrderCanceled, out["status"])
	require.NotContains(t, out, "error")
}

func TestCreateReviewMarksOrderReviewed(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()
	inv := Invocation{TenantID: "t-review", CustomerID: 3}

	res := reg.Execute(ctx, inv, "create_order", json.RawMessage(`{"items":[{"sku":"burger","quantity":1}]}`))
	orderID := decodeResult(t, res)["order_id"].(string)
	require.NoError(t, repo.MarkOrderStatus(ctx, "t-review", orderID, store.OrderDelivered))

	args := json.RawMessage(`{"order_id":"` + orderID + `","rating":5,"comment":"great burger"}`)
	out := decodeResult(t, reg.Execute(ctx, inv, "create_review", args))
	require.NotContains(t, out, "error")
	require.NotEmpty(t, out["review_id"])

	order, err := repo.OrderByID(ctx, "t-review", orderID)
	require.NoError(t, err)
	require.True(t, order.Reviewed)

	// The second review attempt is rejected.
	out = decodeResult(t, reg.Execute(ctx, inv, "create_review", args))
	require.Contains(t, out["error"], "already been reviewed")
}

func TestSchemasCoverEveryTool(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	schemas := reg.Schemas()
	require.Len(t, schemas, len(reg.tools))
	for _, s := range schemas {
		require.NotEmpty(t, s.Name)
		require.NotEmpty(t, s.Description)
		require.NotEmpty(t, s.Parameters)
	}
}

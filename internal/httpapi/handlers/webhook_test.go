package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/pipeline"
	"github.com/chatorder/platform/internal/review"
	"github.com/chatorder/platform/internal/store"
)

type fakeInboundPublisher struct {
	envs []broker.Envelope
	err  error
}

func (p *fakeInboundPublisher) PublishInbound(_ context.Context, env broker.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.envs = append(p.envs, env)
	return nil
}

type fakeDelayedPublisher struct {
	count int
}

func (p *fakeDelayedPublisher) PublishDelayed(context.Context, broker.Envelope, time.Duration) error {
	p.count++
	return nil
}

func newTestHandler(t *testing.T, pub *fakeInboundPublisher) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.Tenant{}, &store.Customer{}, &store.Order{}, &store.Review{}))
	require.NoError(t, convo.AutoMigrate(db))

	repo := store.NewRepo(db)
	log := zap.NewNop()
	scheduler := review.NewScheduler(repo, &fakeDelayedPublisher{}, 5*time.Minute, log)
	return NewHandler(pub, convo.NewRepo(db), repo, scheduler, log), db
}

func doJSON(h gin.HandlerFunc, method, path, body string, params gin.Params) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	h(c)
	return w
}

func TestReceiveEventEnqueues(t *testing.T) {
	pub := &fakeInboundPublisher{}
	h, _ := newTestHandler(t, pub)

	w := doJSON(h.ReceiveEvent, http.MethodPost, "/webhook/t-1",
		`{"sender_id":"wa:1","event_id":"ev-1","text":"hello"}`,
		gin.Params{{Key: "tenant_id", Value: "t-1"}})

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.envs, 1)
	require.Equal(t, pipeline.TypeInbound, pub.envs[0].Type)

	var ev pipeline.InboundEvent
	require.NoError(t, json.Unmarshal(pub.envs[0].Value, &ev))
	require.Equal(t, "t-1", ev.TenantID)
	require.Equal(t, "wa:1", ev.SenderID)
	require.Equal(t, "hello", ev.Text)
}

func TestReceiveEventRejectsIncompleteBody(t *testing.T) {
	pub := &fakeInboundPublisher{}
	h, _ := newTestHandler(t, pub)

	w := doJSON(h.ReceiveEvent, http.MethodPost, "/webhook/t-1",
		`{"sender_id":"wa:1"}`,
		gin.Params{{Key: "tenant_id", Value: "t-1"}})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, pub.envs)
}

func TestReceiveEventReportsBrokerOutage(t *testing.T) {
	pub := &fakeInboundPublisher{err: errors.New("broker down")}
	h, _ := newTestHandler(t, pub)

	w := doJSON(h.ReceiveEvent, http.MethodPost, "/webhook/t-1",
		`{"sender_id":"wa:1","event_id":"ev-1","text":"hello"}`,
		gin.Params{{Key: "tenant_id", Value: "t-1"}})

	// The channel gateway retries on 5xx; a lost event must not 2xx.
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCompleteOrderMarksDelivered(t *testing.T) {
	h, db := newTestHandler(t, &fakeInboundPublisher{})

	require.NoError(t, db.Create(&store.Tenant{
		TenantID: "t-done", Name: "Store", Active: true, Timezone: "UTC",
		SubscriptionStatus: store.SubscriptionActive,
	}).Error)
	customer, err := h.Store.EnsureCustomer(context.Background(), "t-done", "wa:5")
	require.NoError(t, err)

	orderID := uuid.NewString()
	require.NoError(t, h.Store.CreateOrder(context.Background(), &store.Order{
		OrderID: orderID, TenantID: "t-done", CustomerID: customer.ID, Status: store.OrderPlaced,
	}))

	w := doJSON(h.CompleteOrder, http.MethodPost, "/orders/"+orderID+"/complete",
		`{"tenant_id":"t-done"}`,
		gin.Params{{Key: "order_id", Value: orderID}})
	require.Equal(t, http.StatusOK, w.Code)

	order, err := h.Store.OrderByID(context.Background(), "t-done", orderID)
	require.NoError(t, err)
	require.Equal(t, store.OrderDelivered, order.Status)
}

func TestCompleteOrderUnknownOrder(t *testing.T) {
	h, _ := newTestHandler(t, &fakeInboundPublisher{})

	w := doJSON(h.CompleteOrder, http.MethodPost, "/orders/nope/complete",
		`{"tenant_id":"t-x"}`,
		gin.Params{{Key: "order_id", Value: "nope"}})
	require.Equal(t, http.StatusNotFound, w.Code)
}

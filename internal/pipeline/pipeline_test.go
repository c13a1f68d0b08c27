package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/completion"
	"github.com/chatorder/platform/internal/contextwin"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/dedup"
	"github.com/chatorder/platform/internal/gate"
	"github.com/chatorder/platform/internal/loop"
	"github.com/chatorder/platform/internal/store"
	"github.com/chatorder/platform/internal/tools"
)

type sent struct {
	recipientID string
	text        string
}

// recordingSender collects outbound messages instead of hitting a gateway.
type recordingSender struct {
	mu   sync.Mutex
	sent []sent
}

func (s *recordingSender) Send(_ context.Context, _ *store.Tenant, recipientID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{recipientID: recipientID, text: text})
	return nil
}

func (s *recordingSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

// echoProvider answers with the last user message and counts calls.
type echoProvider struct {
	mu    sync.Mutex
	calls int
	last  string
}

func (p *echoProvider) Complete(_ context.Context, req *completion.Request) (*completion.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == convo.RoleUser {
			p.last = req.Messages[i].Content
			break
		}
	}
	return &completion.Result{Text: "echo: " + p.last}, nil
}

func (p *echoProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type nopCatalog struct{}

func (nopCatalog) Search(context.Context, string, string, int) ([]tools.Product, error) {
	return nil, nil
}
func (nopCatalog) BySKU(context.Context, string, string) (*tools.Product, error) {
	return nil, store.ErrNotFound
}
func (nopCatalog) ResolveZone(context.Context, string, string) (*tools.Zone, error) {
	return nil, store.ErrNotFound
}

func newTestPipeline(t *testing.T, tenant *store.Tenant) (*Pipeline, *recordingSender, *echoProvider, *store.Repo) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.Tenant{}, &store.Customer{}, &store.Order{}, &store.Review{}))
	require.NoError(t, convo.AutoMigrate(db))
	require.NoError(t, db.Create(tenant).Error)

	repo := store.NewRepo(db)
	convos := convo.NewRepo(db)
	log := zap.NewNop()

	prov := &echoProvider{}
	providers := completion.NewRegistry()
	providers.Register("scripted", func(context.Context, string) (completion.Provider, error) {
		return prov, nil
	})

	window := contextwin.NewManager(convos, nil, 100000, 7, log)
	reg := tools.NewRegistry(tools.Deps{Catalog: nopCatalog{}, Store: repo, Log: log})
	l := loop.New(window, providers, reg, 5, time.Second, log)

	snd := &recordingSender{}
	p := New(
		Options{QuietPeriod: 30 * time.Millisecond, DedupTTL: time.Minute},
		dedup.NewMemoryStore(),
		gate.New(repo, log),
		l,
		convos,
		snd,
		log,
	)
	return p, snd, prov, repo
}

func pipelineTenant(id string) *store.Tenant {
	return &store.Tenant{
		TenantID:           id,
		Name:               "Store " + id,
		Active:             true,
		Timezone:           "UTC",
		SubscriptionStatus: store.SubscriptionActive,
		Provider:           "scripted",
		Model:              "default",
	}
}

func TestDuplicateEventYieldsOneReply(t *testing.T) {
	p, snd, prov, _ := newTestPipeline(t, pipelineTenant("t-dup"))

	ctx := context.Background()
	ev := InboundEvent{TenantID: "t-dup", SenderID: "wa:1", EventID: "ev-1", Text: "hello"}
	require.NoError(t, p.HandleEvent(ctx, ev))
	require.NoError(t, p.HandleEvent(ctx, ev)) // gateway retry
	p.Close()

	require.Equal(t, 1, prov.callCount())
	msgs := snd.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "wa:1", msgs[0].recipientID)
	require.Equal(t, "echo: hello", msgs[0].text)
}

func TestBurstIsAnsweredAsOneTurn(t *testing.T) {
	p, snd, prov, _ := newTestPipeline(t, pipelineTenant("t-burst"))

	ctx := context.Background()
	require.NoError(t, p.HandleEvent(ctx, InboundEvent{
		TenantID: "t-burst", SenderID: "wa:2", EventID: "ev-a", Text: "hi",
	}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.HandleEvent(ctx, InboundEvent{
		TenantID: "t-burst", SenderID: "wa:2", EventID: "ev-b", Text: "order 2 burgers",
	}))
	p.Close()

	require.Equal(t, 1, prov.callCount())
	msgs := snd.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "echo: hi\norder 2 burgers", msgs[0].text)
}

func TestBlockedCustomerGetsCannedReplyWithoutLoop(t *testing.T) {
	p, snd, prov, repo := newTestPipeline(t, pipelineTenant("t-blocked"))

	ctx := context.Background()
	c, err := repo.EnsureCustomer(ctx, "t-blocked", "wa:3")
	require.NoError(t, err)
	c.Status = store.CustomerSuspended
	require.NoError(t, repo.UpdateCustomer(ctx, c))

	require.NoError(t, p.HandleEvent(ctx, InboundEvent{
		TenantID: "t-blocked", SenderID: "wa:3", EventID: "ev-c", Text: "hello?",
	}))
	p.Close()

	require.Zero(t, prov.callCount())
	msgs := snd.all()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].text, "blocked")
}

func TestHandleEnvelopeDropsGarbage(t *testing.T) {
	p, snd, _, _ := newTestPipeline(t, pipelineTenant("t-garbage"))

	ctx := context.Background()

	// Wrong type and unparseable payloads are acked, not redelivered.
	require.NoError(t, p.HandleEnvelope(ctx, broker.Envelope{Type: "something.else"}))
	require.NoError(t, p.HandleEnvelope(ctx, broker.Envelope{Type: TypeInbound, Value: []byte("{broken")}))

	// Missing identifiers are dropped too.
	require.NoError(t, p.HandleEvent(ctx, InboundEvent{TenantID: "t-garbage", Text: "no sender"}))
	p.Close()

	require.Empty(t, snd.all())
}

func TestConversationPersistsAcrossTurns(t *testing.T) {
	p, snd, _, _ := newTestPipeline(t, pipelineTenant("t-multi"))

	ctx := context.Background()
	require.NoError(t, p.ProcessTurn(ctx, "t-multi", "wa:4", "first turn"))
	require.NoError(t, p.ProcessTurn(ctx, "t-multi", "wa:4", "second turn"))

	msgs := snd.all()
	require.Len(t, msgs, 2)

	// Both turns landed in one conversation log.
	convos := p.convos
	all, err := convos.ListByTenant(ctx, "t-multi", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)

	history, err := convos.Messages(ctx, all[0].ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 4)
}

// Package gate runs the synchronous business-state checks that decide
// whether a turn may reach the conversation loop at all. State can change
// between turns, so the checks run on every turn.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/store"
)

// Short-circuit reasons.
const (
	ReasonCustomerBlocked      = "customer_blocked"
	ReasonTenantInactive       = "tenant_inactive"
	ReasonSubscriptionInactive = "subscription_inactive"
	ReasonServiceClosed        = "service_closed"
)

// defaultReplies are the built-in canned texts, overridable per tenant.
var defaultReplies = map[string]string{
	ReasonCustomerBlocked:      "Sorry, your account is currently blocked. Please contact the store directly.",
	ReasonTenantInactive:       "This store is currently not accepting orders.",
	ReasonSubscriptionInactive: "This store is temporarily unavailable. Please try again later.",
	ReasonServiceClosed:        "We are closed right now. Please message us during opening hours.",
}

// Result is the gate verdict. On success, Tenant and Customer are loaded for
// the rest of the turn; on failure, Reply carries the canned text.
type Result struct {
	OK       bool
	Reason   string
	Reply    string
	Tenant   *store.Tenant
	Customer *store.Customer
}

type Gate struct {
	store *store.Repo
	log   *zap.Logger
	now   func() time.Time
}

func New(repo *store.Repo, log *zap.Logger) *Gate {
	return &Gate{store: repo, log: log, now: time.Now}
}

// Evaluate runs the checks in order, short-circuiting on the first failure:
// customer, tenant, subscription, service hours. An unknown sender gets an
// active customer profile created on first contact.
func (g *Gate) Evaluate(ctx context.Context, tenantID, senderID string) (*Result, error) {
	tenant, err := g.store.TenantByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("gate: load tenant %s: %w", tenantID, err)
	}

	customer, err := g.store.EnsureCustomer(ctx, tenantID, senderID)
	if err != nil {
		return nil, fmt.Errorf("gate: ensure customer %s: %w", senderID, err)
	}
	if customer.Status != store.CustomerActive {
		return g.blocked(tenant, customer, ReasonCustomerBlocked), nil
	}

	if !tenant.Active {
		return g.blocked(tenant, customer, ReasonTenantInactive), nil
	}

	if !subscriptionActive(tenant, g.now()) {
		return g.blocked(tenant, customer, ReasonSubscriptionInactive), nil
	}

	open, err := withinServiceHours(tenant, g.now())
	if err != nil {
		return nil, fmt.Errorf("gate: service hours for tenant %s: %w", tenantID, err)
	}
	if !open {
		return g.blocked(tenant, customer, ReasonServiceClosed), nil
	}

	return &Result{OK: true, Tenant: tenant, Customer: customer}, nil
}

func (g *Gate) blocked(tenant *store.Tenant, customer *store.Customer, reason string) *Result {
	g.log.Info("gate: turn short-circuited",
		zap.String("tenant_id", tenant.TenantID),
		zap.Uint64("customer_id", customer.ID),
		zap.String("reason", reason))
	return &Result{
		Reason:   reason,
		Reply:    cannedReply(tenant, reason),
		Tenant:   tenant,
		Customer: customer,
	}
}

// cannedReply resolves the tenant override for a reason, falling back to the
// built-in default.
func cannedReply(tenant *store.Tenant, reason string) string {
	if tenant.CannedReplies != nil {
		if text, ok := tenant.CannedReplies[reason]; ok && text != "" {
			return text
		}
	}
	return defaultReplies[reason]
}

func subscriptionActive(tenant *store.Tenant, now time.Time) bool {
	if tenant.SubscriptionStatus != store.SubscriptionActive {
		return false
	}
	if tenant.SubscriptionEndsAt != nil && tenant.SubscriptionEndsAt.Before(now) {
		return false
	}
	return true
}

// withinServiceHours evaluates the tenant's weekly schedule in its own time
// zone. An empty schedule means always open. A window whose close time is
// not after its open time wraps past midnight and matches both the evening
// of its listed day and the following small hours.
func withinServiceHours(tenant *store.Tenant, now time.Time) (bool, error) {
	if len(tenant.ServiceHours) == 0 {
		return true, nil
	}

	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		return false, fmt.Errorf("bad timezone %q: %w", tenant.Timezone, err)
	}
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	day := local.Weekday()
	prevDay := (day + 6) % 7

	for _, w := range tenant.ServiceHours {
		open, err := parseClock(w.Open)
		if err != nil {
			return false, err
		}
		close, err := parseClock(w.Close)
		if err != nil {
			return false, err
		}

		if close > open {
			if windowHasDay(w, day) && minutes >= open && minutes < close {
				return true, nil
			}
			continue
		}

		// Overnight wrap: the evening part belongs to the listed day,
		// the early-morning part to the day after.
		if windowHasDay(w, day) && minutes >= open {
			return true, nil
		}
		if windowHasDay(w, prevDay) && minutes < close {
			return true, nil
		}
	}
	return false, nil
}

func windowHasDay(w store.ServiceWindow, day time.Weekday) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

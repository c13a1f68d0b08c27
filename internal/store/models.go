package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Customer statuses.
const (
	CustomerActive    = "active"
	CustomerSuspended = "suspended"
)

// Order statuses.
const (
	OrderPlaced    = "placed"
	OrderDelivered = "delivered"
	OrderCanceled  = "canceled"
)

// ServiceWindow is one opening window in a tenant's weekly schedule.
// Close earlier than Open means the window wraps past midnight.
type ServiceWindow struct {
	Days  []time.Weekday `json:"days"`
	Open  string         `json:"open"`  // "09:00"
	Close string         `json:"close"` // "23:30" or "02:00" (overnight)
}

type Tenant struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	TenantID string `gorm:"type:varchar(26);uniqueIndex;not null"`
	Name     string `gorm:"type:varchar(128);not null"`
	Active   bool   `gorm:"not null;default:true"`

	Timezone     string          `gorm:"type:varchar(64);not null;default:'UTC'"`
	ServiceHours []ServiceWindow `gorm:"serializer:json"`

	SubscriptionStatus string     `gorm:"type:varchar(16);not null;default:'active'"`
	SubscriptionEndsAt *time.Time

	// Completion routing for this tenant's conversations.
	Provider     string `gorm:"type:varchar(32);not null;default:'openai'"`
	Model        string `gorm:"type:varchar(64)"`
	SystemPrompt string `gorm:"type:text"`

	// Credential for the chat channel gateway; empty means outbound
	// delivery cannot work for this tenant.
	ChannelToken string `gorm:"type:varchar(256)"`

	ReviewDelayMinutes int `gorm:"not null;default:0"`

	// Per-tenant overrides for gate short-circuit replies, keyed by reason.
	CannedReplies map[string]string `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Tenant) TableName() string { return "tenants" }

type Customer struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	TenantID  string `gorm:"type:varchar(26);not null;index:uniq_customer_channel,unique,priority:1"`
	ChannelID string `gorm:"type:varchar(128);not null;index:uniq_customer_channel,unique,priority:2"`

	Name    string `gorm:"type:varchar(128)"`
	Phone   string `gorm:"type:varchar(32)"`
	Address string `gorm:"type:varchar(256)"`
	Status  string `gorm:"type:varchar(16);not null;default:'active'"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Customer) TableName() string { return "customers" }

// OrderItem is one line of an order, denormalized at order time so later
// catalog price changes do not rewrite history.
type OrderItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"type:varchar(36);uniqueIndex;not null"`
	TenantID   string `gorm:"type:varchar(26);not null;index"`
	CustomerID uint64 `gorm:"not null;index"`

	Status string      `gorm:"type:varchar(16);not null;default:'placed'"`
	Items  []OrderItem `gorm:"serializer:json"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(12,2)"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2)"`

	DeliveryZone string `gorm:"type:varchar(64)"`
	Address      string `gorm:"type:varchar(256)"`
	Notes        string `gorm:"type:text"`

	Reviewed bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Order) TableName() string { return "orders" }

type Review struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ReviewID   string `gorm:"type:varchar(36);uniqueIndex;not null"`
	OrderID    string `gorm:"type:varchar(36);uniqueIndex;not null"`
	TenantID   string `gorm:"type:varchar(26);not null;index"`
	CustomerID uint64 `gorm:"not null;index"`

	Rating  int    `gorm:"not null"`
	Comment string `gorm:"type:text"`

	CreatedAt time.Time
}

func (Review) TableName() string { return "reviews" }

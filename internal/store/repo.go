package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) TenantByID(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) CustomerByChannelID(ctx context.Context, tenantID, channelID string) (*Customer, error) {
	var c Customer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureCustomer returns the customer for a channel identity, creating an
// active profile on first contact. A concurrent insert loses the race on the
// unique index and falls back to the existing row.
func (r *Repo) EnsureCustomer(ctx context.Context, tenantID, channelID string) (*Customer, error) {
	c, err := r.CustomerByChannelID(ctx, tenantID, channelID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &Customer{TenantID: tenantID, ChannelID: channelID, Status: CustomerActive}
	if createErr := r.db.WithContext(ctx).Create(fresh).Error; createErr != nil {
		if existing, getErr := r.CustomerByChannelID(ctx, tenantID, channelID); getErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return fresh, nil
}

func (r *Repo) CustomerByID(ctx context.Context, id uint64) (*Customer, error) {
	var c Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) UpdateCustomer(ctx context.Context, c *Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *Repo) OrderByID(ctx context.Context, tenantID, orderID string) (*Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) UpdateOrder(ctx context.Context, o *Order) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *Repo) MarkOrderStatus(ctx context.Context, tenantID, orderID, status string) error {
	return r.db.WithContext(ctx).Model(&Order{}).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Update("status", status).Error
}

// CreateReview stores a review and flags the order as reviewed in one
// transaction, so a redelivered review job observes a consistent state.
func (r *Repo) CreateReview(ctx context.Context, rev *Review) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		return tx.Model(&Order{}).
			Where("tenant_id = ? AND order_id = ?", rev.TenantID, rev.OrderID).
			Update("reviewed", true).Error
	})
}

func (r *Repo) ReviewByOrderID(ctx context.Context, tenantID, orderID string) (*Review, error) {
	var rev Review
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		First(&rev).Error; err != nil {
		return nil, err
	}
	return &rev, nil
}

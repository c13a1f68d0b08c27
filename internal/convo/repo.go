package convo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// AutoMigrate creates or updates the conversation tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Conversation{}, &Message{}); err != nil {
		return fmt.Errorf("convo: migrate: %w", err)
	}
	return nil
}

// ActiveConversation returns the active conversation for a (tenant, customer)
// pair, creating one with the given system prompt if none exists.
func (r *Repo) ActiveConversation(ctx context.Context, tenantID string, customerID uint64, systemPrompt string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND active = ?", tenantID, customerID, true).
		First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &Conversation{
		ConversationID: NewConversationID(),
		TenantID:       tenantID,
		CustomerID:     customerID,
		SystemPrompt:   systemPrompt,
		Active:         true,
	}
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

func (r *Repo) ByConversationID(ctx context.Context, conversationID string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Conversation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Deactivate(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Update("active", false).Error
}

// Append assigns the next sequence index, stores the message, and bumps the
// conversation's running token counter, all in one transaction.
func (r *Repo) Append(ctx context.Context, conversationID string, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		if err := tx.Model(&Message{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		m.ConversationID = conversationID
		m.Seq = maxSeq + 1
		if err := tx.Create(m).Error; err != nil {
			return err
		}

		return tx.Model(&Conversation{}).
			Where("conversation_id = ?", conversationID).
			Update("token_count", gorm.Expr("token_count + ?", m.TokenCount)).Error
	})
}

// Messages returns the full log in seq order (oldest first).
func (r *Repo) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MessagesBefore pages backwards through a conversation (newest first).
func (r *Repo) MessagesBefore(ctx context.Context, conversationID string, limit int, beforeSeq int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ReplaceRange deletes messages with seq in [fromSeq, toSeq], inserts the
// summary at fromSeq, and resets the conversation counter to newTokenCount.
// Used only by context compression.
func (r *Repo) ReplaceRange(ctx context.Context, conversationID string, fromSeq, toSeq int, summary *Message, newTokenCount int) error {
	if fromSeq > toSeq {
		return fmt.Errorf("convo: replace range: fromSeq %d > toSeq %d", fromSeq, toSeq)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("conversation_id = ? AND seq >= ? AND seq <= ?", conversationID, fromSeq, toSeq).
			Delete(&Message{}).Error; err != nil {
			return err
		}

		summary.ConversationID = conversationID
		summary.Seq = fromSeq
		summary.Summary = true
		if err := tx.Create(summary).Error; err != nil {
			return err
		}

		return tx.Model(&Conversation{}).
			Where("conversation_id = ?", conversationID).
			Update("token_count", newTokenCount).Error
	})
}

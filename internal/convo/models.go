package convo

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Conversation is the per-customer dialogue head. At most one active
// conversation exists per (tenant, customer); rows are deactivated, never
// hard-deleted.
type Conversation struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"type:varchar(26);uniqueIndex;not null"`
	TenantID       string `gorm:"type:varchar(26);not null;index:idx_convo_tenant_customer,priority:1"`
	CustomerID     uint64 `gorm:"not null;index:idx_convo_tenant_customer,priority:2"`

	SystemPrompt string `gorm:"type:text"`
	TokenCount   int    `gorm:"not null;default:0"`
	Active       bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Conversation) TableName() string { return "conversations" }

// Message is one entry in a conversation's append-only log. Immutable except
// during compression, which replaces a contiguous seq range with a synthetic
// summary message.
type Message struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"type:varchar(26);not null;index:uniq_convo_seq,unique,priority:1"`
	Seq            int    `gorm:"not null;index:uniq_convo_seq,unique,priority:2"`

	Role    string `gorm:"type:varchar(16);not null"`
	Content string `gorm:"type:text;not null"`

	// ToolCalls holds the JSON-encoded call requests on an assistant
	// message; ToolCallID correlates a tool-role result with its call.
	ToolCalls  string `gorm:"type:text"`
	ToolCallID string `gorm:"type:varchar(64)"`

	TokenCount int  `gorm:"not null;default:0"`
	Summary    bool `gorm:"not null;default:false"`

	CreatedAt time.Time
}

func (Message) TableName() string { return "conversation_messages" }

// NewConversationID returns a ULID string (sortable, 26 chars).
func NewConversationID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

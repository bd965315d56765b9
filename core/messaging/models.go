// Package messaging is the conversations/messages slice of the application:
// the business surface that exercises tenant scoping on every query and
// feeds the realtime channel on every write.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation groups messages. LastMessageAt is a derived denormalization
// bumped on each new message; it is eventually consistent and read-repaired
// by re-querying, never trusted as authoritative.
type Conversation struct {
	ID            int64            `json:"id"`
	SchoolID      session.TenantID `json:"school_id"`
	Subject       string           `json:"subject"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`      // UTC
	LastMessageAt time.Time        `json:"last_message_at"` // UTC
}

// Topic names the conversation's live-update channel.
func (c Conversation) Topic() string { return ConversationTopic(c.ID) }

func ConversationTopic(id int64) string {
	return fmt.Sprintf("conversation:%d", id)
}

// Message belongs to exactly one Conversation.
type Message struct {
	ID             int64            `json:"id"`
	SchoolID       session.TenantID `json:"school_id"`
	ConversationID int64            `json:"conversation_id"`
	SenderID       string           `json:"sender_id"`
	Body           string           `json:"body"`
	CreatedAt      time.Time        `json:"created_at"` // UTC
}

// NewConversation contains information needed to start a Conversation.
type NewConversation struct {
	Subject string `json:"subject" validate:"required"`
}

func (nc *NewConversation) Validate() error {
	nc.Subject = core.CleanString(nc.Subject)
	return core.Validate.Struct(nc)
}

// NewMessage contains information needed to post a Message.
type NewMessage struct {
	Body string `json:"body" validate:"required"`
}

func (nm *NewMessage) Validate() error {
	nm.Body = core.CleanString(nm.Body)
	return core.Validate.Struct(nm)
}

// Repository persists conversations and messages. Every operation takes the
// tenant explicitly and must constrain reads and stamp writes with it; the
// postgres implementation routes through the scope helpers, the dummy one
// filters by hand.
type Repository interface {
	CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
	GetConversation(ctx context.Context, id int64, tenant session.TenantID) (Conversation, error)
	QueryConversations(ctx context.Context, tenant session.TenantID) ([]Conversation, error)
	TouchConversation(ctx context.Context, id int64, tenant session.TenantID, at time.Time) error

	CreateMessage(ctx context.Context, msg Message) (Message, error)
	QueryMessages(ctx context.Context, conversationID int64, tenant session.TenantID) ([]Message, error)
}

package messaging

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
	"github.com/shule-app/shule/identity"
)

// Publisher emits row-changed hints on a topic. Satisfied by the realtime
// manager; consumers re-fetch on receipt, the hint carries no payload.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// Service implements the messaging operations. Every operation resolves the
// tenant through the Guard before touching the repository; there is no
// unscoped path.
type Service struct {
	repo      Repository
	guard     session.Guard
	publisher Publisher
	logger    core.Logger
}

func NewService(repo Repository, guard session.Guard, publisher Publisher, logger core.Logger) *Service {
	return &Service{repo: repo, guard: guard, publisher: publisher, logger: logger}
}

func (svc *Service) CreateConversation(ctx context.Context, nc NewConversation) (Conversation, error) {
	tenant, err := svc.guard.RequireTenant()
	if err != nil {
		return Conversation{}, err
	}
	if err := nc.Validate(); err != nil {
		return Conversation{}, err
	}

	principal, _ := svc.guard.Principal()
	conv := Conversation{
		SchoolID:  tenant,
		Subject:   nc.Subject,
		CreatedBy: principalID(principal),
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateConversation(ctx, conv)
}

func (svc *Service) QueryConversations(ctx context.Context) ([]Conversation, error) {
	tenant, err := svc.guard.RequireTenant()
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryConversations(ctx, tenant)
}

func (svc *Service) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	tenant, err := svc.guard.RequireTenant()
	if err != nil {
		return Conversation{}, err
	}
	return svc.repo.GetConversation(ctx, id, tenant)
}

// SendMessage posts to a conversation the current tenant owns, bumps the
// conversation's LastMessageAt and publishes a row-changed hint on its topic.
func (svc *Service) SendMessage(ctx context.Context, conversationID int64, nm NewMessage) (Message, error) {
	tenant, err := svc.guard.RequireTenant()
	if err != nil {
		return Message{}, err
	}
	if err := nm.Validate(); err != nil {
		return Message{}, err
	}

	// scoped existence check: a foreign tenant's conversation reads as absent
	if _, err := svc.repo.GetConversation(ctx, conversationID, tenant); err != nil {
		return Message{}, err
	}

	principal, _ := svc.guard.Principal()
	now := time.Now().UTC()
	msg := Message{
		SchoolID:       tenant,
		ConversationID: conversationID,
		SenderID:       principalID(principal),
		Body:           nm.Body,
		CreatedAt:      now,
	}
	msg, err = svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	// denormalization only: failures are logged, the list view read-repairs
	// by re-querying
	if err := svc.repo.TouchConversation(ctx, conversationID, tenant, now); err != nil {
		svc.logger.Warn("messaging: bumping last_message_at", err)
	}

	if svc.publisher != nil {
		if err := svc.publisher.Publish(ctx, ConversationTopic(conversationID)); err != nil {
			svc.logger.Warn("messaging: publishing row-changed hint", err)
		}
	}
	return msg, nil
}

func (svc *Service) QueryMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	tenant, err := svc.guard.RequireTenant()
	if err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetConversation(ctx, conversationID, tenant); err != nil {
		return nil, err
	}
	return svc.repo.QueryMessages(ctx, conversationID, tenant)
}

func principalID(p *identity.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

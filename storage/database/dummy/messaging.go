package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/session"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *DB) messaging.Repository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateConversation(ctx context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	t := repo.db.conversations
	t.Lock()
	defer t.Unlock()

	t.convPK++
	conv.ID = t.convPK
	cp := conv
	t.convs[conv.ID] = &cp
	return conv, nil
}

func (repo *messagingRepository) GetConversation(ctx context.Context, id int64, tenant session.TenantID) (messaging.Conversation, error) {
	t := repo.db.conversations
	t.RLock()
	defer t.RUnlock()

	if conv, ok := t.convs[id]; ok && conv.SchoolID == tenant {
		return *conv, nil
	}
	return messaging.Conversation{}, messaging.ErrNotFound
}

func (repo *messagingRepository) QueryConversations(ctx context.Context, tenant session.TenantID) ([]messaging.Conversation, error) {
	t := repo.db.conversations
	t.RLock()
	defer t.RUnlock()

	convs := make([]messaging.Conversation, 0)
	for _, conv := range t.convs {
		if conv.SchoolID == tenant {
			convs = append(convs, *conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].LastMessageAt.After(convs[j].LastMessageAt) })
	return convs, nil
}

func (repo *messagingRepository) TouchConversation(ctx context.Context, id int64, tenant session.TenantID, at time.Time) error {
	t := repo.db.conversations
	t.Lock()
	defer t.Unlock()

	conv, ok := t.convs[id]
	if !ok || conv.SchoolID != tenant {
		return messaging.ErrNotFound
	}
	conv.LastMessageAt = at
	return nil
}

func (repo *messagingRepository) CreateMessage(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	t := repo.db.conversations
	t.Lock()
	defer t.Unlock()

	t.msgPK++
	msg.ID = t.msgPK
	cp := msg
	t.messages[msg.ID] = &cp
	return msg, nil
}

func (repo *messagingRepository) QueryMessages(ctx context.Context, conversationID int64, tenant session.TenantID) ([]messaging.Message, error) {
	t := repo.db.conversations
	t.RLock()
	defer t.RUnlock()

	msgs := make([]messaging.Message, 0)
	for _, msg := range t.messages {
		if msg.ConversationID == conversationID && msg.SchoolID == tenant {
			msgs = append(msgs, *msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

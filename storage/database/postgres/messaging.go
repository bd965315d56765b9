package pgrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/scope"
	"github.com/shule-app/shule/core/session"
)

type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *sqlx.DB) messaging.Repository {
	return &messagingRepository{db: db}
}

type conversationRow struct {
	ID            int64     `db:"id"`
	SchoolID      int64     `db:"school_id"`
	Subject       string    `db:"subject"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
	LastMessageAt time.Time `db:"last_message_at"`
}

func (r conversationRow) toConversation() messaging.Conversation {
	return messaging.Conversation{
		ID:            r.ID,
		SchoolID:      session.TenantID(r.SchoolID),
		Subject:       r.Subject,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		LastMessageAt: r.LastMessageAt.UTC(),
	}
}

type messageRow struct {
	ID             int64     `db:"id"`
	SchoolID       int64     `db:"school_id"`
	ConversationID int64     `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	Body           string    `db:"body"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r messageRow) toMessage() messaging.Message {
	return messaging.Message{
		ID:             r.ID,
		SchoolID:       session.TenantID(r.SchoolID),
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Body:           r.Body,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func (repo *messagingRepository) CreateConversation(ctx context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	record := scope.Insert(map[string]interface{}{
		"subject":    conv.Subject,
		"created_by": conv.CreatedBy,
		"created_at": conv.CreatedAt,
	}, conv.SchoolID)

	query, args, err := psql.Insert("conversation").
		SetMap(record).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return messaging.Conversation{}, err
	}
	if err = repo.db.QueryRowContext(ctx, query, args...).Scan(&conv.ID); err != nil {
		return messaging.Conversation{}, errors.Wrap(err, "inserting conversation")
	}
	return conv, nil
}

func (repo *messagingRepository) GetConversation(ctx context.Context, id int64, tenant session.TenantID) (messaging.Conversation, error) {
	query, args, err := scope.Read(
		psql.Select("id", "school_id", "subject", "created_by", "created_at", "last_message_at").
			From("conversation").
			Where(sq.Eq{"id": id}),
		tenant,
	).ToSql()
	if err != nil {
		return messaging.Conversation{}, err
	}

	var row conversationRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return messaging.Conversation{}, messaging.ErrNotFound
		}
		return messaging.Conversation{}, errors.Wrap(err, "querying conversation")
	}
	return row.toConversation(), nil
}

func (repo *messagingRepository) QueryConversations(ctx context.Context, tenant session.TenantID) ([]messaging.Conversation, error) {
	query, args, err := scope.Read(
		psql.Select("id", "school_id", "subject", "created_by", "created_at", "last_message_at").
			From("conversation").
			OrderBy("last_message_at DESC, id DESC"),
		tenant,
	).ToSql()
	if err != nil {
		return nil, err
	}

	var rows []conversationRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	convs := make([]messaging.Conversation, len(rows))
	for i, row := range rows {
		convs[i] = row.toConversation()
	}
	return convs, nil
}

func (repo *messagingRepository) TouchConversation(ctx context.Context, id int64, tenant session.TenantID, at time.Time) error {
	query, args, err := scope.Update(
		psql.Update("conversation").
			Set("last_message_at", at).
			Where(sq.Eq{"id": id}),
		tenant,
	).ToSql()
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "touching conversation")
	}
	return nil
}

func (repo *messagingRepository) CreateMessage(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	record := scope.Insert(map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"body":            msg.Body,
		"created_at":      msg.CreatedAt,
	}, msg.SchoolID)

	query, args, err := psql.Insert("message").
		SetMap(record).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return messaging.Message{}, err
	}
	if err = repo.db.QueryRowContext(ctx, query, args...).Scan(&msg.ID); err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *messagingRepository) QueryMessages(ctx context.Context, conversationID int64, tenant session.TenantID) ([]messaging.Message, error) {
	query, args, err := scope.Read(
		psql.Select("id", "school_id", "conversation_id", "sender_id", "body", "created_at").
			From("message").
			Where(sq.Eq{"conversation_id": conversationID}).
			OrderBy("created_at, id"),
		tenant,
	).ToSql()
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]messaging.Message, len(rows))
	for i, row := range rows {
		msgs[i] = row.toMessage()
	}
	return msgs, nil
}

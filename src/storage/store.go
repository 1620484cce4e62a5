package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// GetConversationByID retrieves a conversation by its ID
func GetConversationByID(ctx context.Context, db sqlscan.Querier, conversationID string) (*Conversation, error) {
	query := `SELECT id, flavor, agent_type, title, created_at, updated_at FROM conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates a new conversation in the database
func CreateConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.Flavor == "" {
		conversation.Flavor = FlavorPeer
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = time.Now()
	}

	query := `INSERT INTO conversations (id, flavor, agent_type, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conversation.ID, conversation.Flavor, conversation.AgentType, conversation.Title, conversation.CreatedAt, conversation.UpdatedAt)
	return err
}

// ListConversations retrieves all conversations, most recently updated first
func ListConversations(ctx context.Context, db sqlscan.Querier) ([]Conversation, error) {
	query := `SELECT id, flavor, agent_type, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	var conversations []Conversation
	if err := sqlscan.Select(ctx, db, &conversations, query); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetMessagesByConversationID retrieves all messages for a conversation ordered by creation time
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Message, error) {
	query := `SELECT id, conversation_id, role, provider, model, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at`
	var messages []Message
	err := sqlscan.Select(ctx, db, &messages, query, conversationID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentMessages retrieves the most recent messages for a conversation in
// chronological order, bounded to limit.
func GetRecentMessages(ctx context.Context, db sqlscan.Querier, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, provider, model, content, created_at FROM (
		SELECT id, conversation_id, role, provider, model, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?
	) ORDER BY created_at`
	var messages []Message
	err := sqlscan.Select(ctx, db, &messages, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessage creates a new message in the database
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	query := `INSERT INTO messages (id, conversation_id, role, provider, model, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, message.ID, message.ConversationID, message.Role, message.Provider, message.Model, message.Content, message.CreatedAt)
	if err != nil {
		return err
	}

	touch := `UPDATE conversations SET updated_at = ? WHERE id = ?`
	_, err = db.ExecContext(ctx, touch, message.CreatedAt, message.ConversationID)
	return err
}

// GetGuardState retrieves the throttle state for a conversation. A missing
// row is not an error; callers get a zero-valued state.
func GetGuardState(ctx context.Context, db sqlscan.Querier, conversationID string) (*GuardState, error) {
	query := `SELECT conversation_id, last_reply_at, recent_messages, updated_at FROM guard_state WHERE conversation_id = ?`
	var gs GuardState
	err := sqlscan.Get(ctx, db, &gs, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &GuardState{ConversationID: conversationID, RecentMessages: JSONStringArray{}}, nil
		}
		return nil, err
	}
	return &gs, nil
}

// SaveGuardState upserts the throttle state for a conversation.
func SaveGuardState(ctx context.Context, db Execer, state *GuardState) error {
	state.UpdatedAt = time.Now()
	if state.RecentMessages == nil {
		state.RecentMessages = JSONStringArray{}
	}

	query := `INSERT INTO guard_state (conversation_id, last_reply_at, recent_messages, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			last_reply_at = excluded.last_reply_at,
			recent_messages = excluded.recent_messages,
			updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, state.ConversationID, state.LastReplyAt, state.RecentMessages, state.UpdatedAt)
	return err
}

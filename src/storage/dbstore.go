package storage

import "context"

// Store bundles the package-level queries behind one value, giving callers
// an injectable persistence surface.
type Store struct {
	db ExecQuerier
}

// NewStore creates a Store over an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db.DB()}
}

func (s *Store) CreateConversation(ctx context.Context, conv *Conversation) error {
	return CreateConversation(ctx, s.db, conv)
}

func (s *Store) GetConversationByID(ctx context.Context, conversationID string) (*Conversation, error) {
	return GetConversationByID(ctx, s.db, conversationID)
}

func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	return ListConversations(ctx, s.db)
}

func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	return CreateMessage(ctx, s.db, msg)
}

func (s *Store) GetMessagesByConversationID(ctx context.Context, conversationID string) ([]Message, error) {
	return GetMessagesByConversationID(ctx, s.db, conversationID)
}

func (s *Store) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	return GetRecentMessages(ctx, s.db, conversationID, limit)
}

func (s *Store) GetGuardState(ctx context.Context, conversationID string) (*GuardState, error) {
	return GetGuardState(ctx, s.db, conversationID)
}

func (s *Store) SaveGuardState(ctx context.Context, state *GuardState) error {
	return SaveGuardState(ctx, s.db, state)
}

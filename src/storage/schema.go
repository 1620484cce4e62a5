package storage

import "time"

// Conversation flavors. The flavor is fixed at creation time and never
// changes for the life of the conversation.
const (
	FlavorPeer   = "peer"
	FlavorSystem = "system"
	FlavorAgent  = "agent"
)

// Conversation is one chat thread between the adopter and a counterpart.
// AgentType is only set for FlavorAgent conversations and names the persona.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	Flavor    string    `json:"flavor" db:"flavor"`
	AgentType string    `json:"agent_type" db:"agent_type"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one stored chat turn. Provider and Model are filled only for
// model-generated replies.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Provider       string    `json:"provider" db:"provider"`
	Model          string    `json:"model" db:"model"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// GuardState is the per-conversation throttle state: when the last automated
// reply went out and a bounded window of recent user messages. Keeping it in
// the database means the cooldown survives reloads and multiple clients.
type GuardState struct {
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	LastReplyAt    *time.Time      `json:"last_reply_at,omitempty" db:"last_reply_at"`
	RecentMessages JSONStringArray `json:"recent_messages" db:"recent_messages"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

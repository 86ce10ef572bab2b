package models

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single message in a user's session history.
// Turns are immutable once created; ordering is arrival order.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage is one entry in an OpenAI-compatible chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnsToMessages converts session history into chat completion messages
func TurnsToMessages(turns []ConversationTurn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, ChatMessage{Role: t.Role, Content: t.Content})
	}
	return messages
}

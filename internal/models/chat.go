package models

import (
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known tags.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Label returns the display label used when formatting conversation context.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	}
	return "Unknown"
}

// ChatMessage represents a single stored conversation turn.
// SequenceNum is a per-session monotonic counter starting at 1.
type ChatMessage struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"session_id"`
	Content     string  `json:"content"`
	Role        Role    `json:"role"`
	SequenceNum int     `json:"sequence_num"`
	Timestamp   float64 `json:"timestamp"`
}

// FormatContextMessages renders messages as a labeled context block,
// one "User:/Assistant:/System:" line per message.
func FormatContextMessages(messages []ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", msg.Role.Label(), msg.Content)
	}
	return b.String()
}

// ChatRequest represents an incoming conversation-aware query.
type ChatRequest struct {
	SessionID          string   `json:"session_id"`
	Message            string   `json:"message"`
	UseMemory          *bool    `json:"use_memory,omitempty"`
	DocumentWeight     *float64 `json:"document_weight,omitempty"`
	ConversationWeight *float64 `json:"conversation_weight,omitempty"`
	TopKDocs           int      `json:"top_k_docs,omitempty"`
	TopKConversations  int      `json:"top_k_conversations,omitempty"`
	Collection         string   `json:"collection,omitempty"`
}

// Validate validates the chat request.
func (cr *ChatRequest) Validate() error {
	if cr.SessionID == "" {
		return &ValidationError{Field: "session_id", Message: "session ID is required"}
	}
	if strings.TrimSpace(cr.Message) == "" {
		return &ValidationError{Field: "message", Message: "message is required"}
	}
	if cr.DocumentWeight != nil && (*cr.DocumentWeight < 0 || *cr.DocumentWeight > 1) {
		return &ValidationError{Field: "document_weight", Message: "document weight must be between 0 and 1"}
	}
	if cr.ConversationWeight != nil && (*cr.ConversationWeight < 0 || *cr.ConversationWeight > 1) {
		return &ValidationError{Field: "conversation_weight", Message: "conversation weight must be between 0 and 1"}
	}
	return nil
}

// HistoryResponse is returned by the chat history endpoint.
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
	Total     int           `json:"total"`
}

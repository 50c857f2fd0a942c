package model

import "time"

// Conversation groups chat messages for one document.
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of a grounded conversation. SourcePages lists the page
// numbers whose excerpts grounded an assistant reply.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	SourcePages    []int       `json:"source_pages,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// PageEmbedding is one embedding vector per embeddable page.
type PageEmbedding struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	PageID     string    `json:"page_id"`
	PageNumber int       `json:"page_number"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

package chat

import "time"

// Role identifies the author of a transcript message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall status values. Transitions only move forward:
// pending -> running -> completed or failed.
const (
	ToolStatusPending   = "pending"
	ToolStatusRunning   = "running"
	ToolStatusCompleted = "completed"
	ToolStatusFailed    = "failed"
)

// Message represents one entry in a conversation transcript.
// The ID is assigned client-side at creation and never changes.
type Message struct {
	ID          string
	Role        string
	Content     string
	Timestamp   time.Time
	IsStreaming bool
	ToolCalls   []ToolCall
}

// ToolCall is a sub-operation invoked by the assistant mid-response,
// tracked independently of the surrounding text.
type ToolCall struct {
	ID     string
	Name   string
	Args   map[string]any
	Status string
	Result string
}

// Outbound is the payload serialized onto the stream when the user sends
// a message. ConversationID is nil for a brand-new chat and marshals as an
// explicit null; the server assigns an id and pushes it back via a
// conversation_created event.
type Outbound struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

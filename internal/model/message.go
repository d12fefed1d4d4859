package model

// Role represents the role of a thread message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ThreadMessage is a message read back from a hosted thread.
type ThreadMessage struct {
	ID   string
	Role Role
	Text string
}

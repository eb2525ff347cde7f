package session

import (
	"encoding/json"
	"time"
)

// Message is one entry in a session's timeline.
type Message struct {
	// Role is "user", "assistant", "tool", or "error".
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	// Tool fields, set when Role is "tool".
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Result    string          `json:"result,omitempty"`
	Collapsed bool            `json:"collapsed,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
}

// TokenUsage is the accumulated token count for a session.
type TokenUsage struct {
	Input         int `json:"input"`
	Output        int `json:"output"`
	CacheRead     int `json:"cacheRead"`
	CacheCreation int `json:"cacheCreation"`
}

// Record is one persisted session.
type Record struct {
	SessionID    string     `json:"sessionId"`
	ProjectPaths []string   `json:"projectPaths"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	FirstMessage string     `json:"firstMessage"`
	Messages     []Message  `json:"messages"`
	TokenUsage   TokenUsage `json:"tokenUsage"`
}

// Metadata is the listing view of a Record, without the message timeline.
type Metadata struct {
	SessionID    string    `json:"sessionId"`
	ProjectPaths []string  `json:"projectPaths"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	FirstMessage string    `json:"firstMessage"`
	MessageCount int       `json:"messageCount"`
}

package domain

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the provider for a single JSON object matching Schema.
type ResponseFormat struct {
	Name   string
	Schema json.RawMessage
}

// ChatRequest is what a completion provider receives. A nil Format means free text.
type ChatRequest struct {
	Messages []ChatMessage
	Format   *ResponseFormat
}

// QAPair is one knowledge base entry.
type QAPair struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

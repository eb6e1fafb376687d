package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyConversation = errors.New("conversation is empty")

// Conversation is the full transcript resent by the caller on every intake turn.
// Array order is chronological order.
type Conversation []ChatMessage

// Validate checks the shape the intake workflow relies on: at least one message,
// only user/assistant roles, no blank content, and a user message last.
func (c Conversation) Validate() error {
	if len(c) == 0 {
		return ErrEmptyConversation
	}
	for i, m := range c {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d: content is empty", i)
		}
	}
	if last := c[len(c)-1]; last.Role != RoleUser {
		return fmt.Errorf("last message must have role %q, got %q", RoleUser, last.Role)
	}
	return nil
}

// AssistantTurns counts the analyst replies already present in the transcript.
func (c Conversation) AssistantTurns() int {
	n := 0
	for _, m := range c {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// Clone returns a copy that does not share the caller's backing array.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Package chat implements the conversation session engine: durable
// session records, recency grouping, title derivation, and the
// controller that coordinates the displayed session with the session
// bound to an in-flight model stream.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/ppiont/socratex/internal/llm"
)

// Message is one persisted conversation turn.
type Message struct {
	ID    string     `json:"id"`
	Role  llm.Role   `json:"role"`
	Parts []llm.Part `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	return llm.Message{Role: m.Role, Parts: m.Parts}.Text()
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Parts = llm.CloneParts(m.Parts)
	return m
}

// NewUserMessage mints a user message with a fresh id.
func NewUserMessage(parts []llm.Part) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  llm.RoleUser,
		Parts: llm.CloneParts(parts),
	}
}

// NewAssistantMessage mints an empty assistant message with a fresh id.
func NewAssistantMessage() Message {
	return Message{
		ID:   uuid.NewString(),
		Role: llm.RoleAssistant,
	}
}

// Session is one durable conversation with derived metadata.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Messages = CloneMessageList(s.Messages)
	return s
}

// NewSession mints an empty session stamped at now.
func NewSession(now time.Time) Session {
	return Session{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CloneMessageList returns a detached copy of a message slice.
func CloneMessageList(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = msg.Clone()
	}
	return out
}

// transportMessages converts persisted messages into provider messages.
func transportMessages(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, llm.Message{Role: msg.Role, Parts: llm.CloneParts(msg.Parts)})
	}
	return out
}

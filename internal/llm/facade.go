package llm

import (
	anthropicprovider "github.com/ppiont/socratex/internal/llm/providers/anthropic"
	mockprovider "github.com/ppiont/socratex/internal/llm/providers/mock"

	"github.com/ppiont/socratex/internal/llm/core"
)

type (
	// Provider is the public streaming provider contract.
	Provider = core.Provider

	// EventType enumerates stream event variants.
	EventType = core.EventType

	// RetryPolicy configures retry/backoff behavior.
	RetryPolicy = core.RetryPolicy

	// Request and Event payload aliases define the public stream protocol.
	Request     = core.Request
	DonePayload = core.DonePayload
	Event       = core.Event

	// Conversation-model aliases.
	Role       = core.Role
	StopReason = core.StopReason
	PartType   = core.PartType
	Part       = core.Part
	Message    = core.Message
	Usage      = core.Usage

	// Anthropic* aliases expose provider-specific configuration and implementation.
	AnthropicConfig   = anthropicprovider.Config
	AnthropicProvider = anthropicprovider.Provider

	// MockProvider emits scripted events for tests.
	MockProvider = mockprovider.Provider
)

const (
	EventStart     = core.EventStart
	EventTextDelta = core.EventTextDelta
	EventUsage     = core.EventUsage
	EventDone      = core.EventDone
	EventError     = core.EventError

	RoleUser      = core.RoleUser
	RoleAssistant = core.RoleAssistant

	PartTypeText  = core.PartTypeText
	PartTypeImage = core.PartTypeImage

	StopReasonStop    = core.StopReasonStop
	StopReasonLength  = core.StopReasonLength
	StopReasonError   = core.StopReasonError
	StopReasonAborted = core.StopReasonAborted
)

var (
	// ErrInvalidRequest indicates malformed provider request input.
	ErrInvalidRequest = core.ErrInvalidRequest
	// ErrMissingAPIKey indicates missing provider API key.
	ErrMissingAPIKey = core.ErrMissingAPIKey
)

// NewAnthropicProvider constructs the Anthropic streaming provider.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	return anthropicprovider.New(cfg)
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return core.TextPart(text)
}

// ImagePart builds an image content part.
func ImagePart(url, mediaType string) Part {
	return core.ImagePart(url, mediaType)
}

// UserTextMessage builds a single-part user message.
func UserTextMessage(text string) Message {
	return core.UserTextMessage(text)
}

// CloneMessages returns a detached copy of a message slice.
func CloneMessages(messages []Message) []Message {
	return core.CloneMessages(messages)
}

// CloneParts returns a detached copy of a part slice.
func CloneParts(parts []Part) []Part {
	return core.CloneParts(parts)
}

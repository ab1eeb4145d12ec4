package core

import (
	"context"
	"time"
)

// Provider streams model events for a single request.
type Provider interface {
	Stream(ctx context.Context, req *Request) (<-chan Event, error)
}

// EventType identifies stream event variants.
type EventType string

const (
	EventStart     EventType = "start"
	EventTextDelta EventType = "text_delta"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// RetryPolicy configures retry/backoff behavior for retryable failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Request is the provider-agnostic streaming request: an ordered message
// list plus fixed system instructions.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
	Metadata    map[string]string
	Retry       RetryPolicy
}

// DonePayload carries the final status when the stream ends normally.
type DonePayload struct {
	Reason StopReason
	Usage  Usage
}

// Event is the provider-agnostic streaming event.
type Event struct {
	Type      EventType
	TextDelta string
	Usage     *Usage
	Done      *DonePayload
	Err       error
}

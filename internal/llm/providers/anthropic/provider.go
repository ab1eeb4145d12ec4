package anthropicprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ppiont/socratex/internal/llm/core"
)

// Config configures the Anthropic provider.
type Config struct {
	APIKey     string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Retry      core.RetryPolicy
}

// Provider is a thin wrapper around the official anthropic-sdk-go client.
type Provider struct {
	apiKey string
	retry  core.RetryPolicy

	client anthropic.Client
}

// New constructs a provider with sane defaults.
func New(cfg Config) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	version := strings.TrimSpace(cfg.Version)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	clientOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // explicit retry behavior in this package
	}
	if baseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(baseURL))
	}
	if version != "" {
		clientOptions = append(clientOptions, option.WithHeader("anthropic-version", version))
	}

	return &Provider{
		apiKey: apiKey,
		retry:  core.NormalizeRetryPolicy(cfg.Retry),
		client: anthropic.NewClient(clientOptions...),
	}
}

// Stream executes a single Anthropic Messages API streaming request.
func (p *Provider) Stream(ctx context.Context, req *core.Request) (<-chan core.Event, error) {
	if p == nil {
		return nil, fmt.Errorf("anthropic provider is nil")
	}
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, core.ErrMissingAPIKey
	}

	params, err := toAnthropicSDKParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan core.Event, 1)
	retry := core.MergeRetryPolicy(p.retry, req.Retry)

	go func() {
		defer close(events)
		state := &streamState{reason: core.StopReasonStop}
		if err := p.streamWithRetry(ctx, params, retry, events, state); err != nil {
			reason := core.StopReasonError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = core.StopReasonAborted
			}
			core.SendTerminalEvent(events, core.Event{
				Type: core.EventError,
				Done: &core.DonePayload{
					Reason: reason,
					Usage:  state.usage,
				},
				Err: fmt.Errorf("anthropic stream: %w", err),
			})
		}
	}()

	return events, nil
}

// streamState tracks incremental response state across one logical stream request.
type streamState struct {
	usage          core.Usage
	reason         core.StopReason
	emittedVisible bool
	startEmitted   bool
	emittedDone    bool
}

// streamWithRetry retries failed streams only when no visible output has been emitted yet.
func (p *Provider) streamWithRetry(
	ctx context.Context,
	params anthropic.MessageNewParams,
	retry core.RetryPolicy,
	events chan<- core.Event,
	state *streamState,
) error {
	attempt := 0
	for {
		attemptErr := p.streamOnce(ctx, params, events, state)
		if attemptErr == nil {
			return nil
		}
		if errors.Is(attemptErr, context.Canceled) || errors.Is(attemptErr, context.DeadlineExceeded) {
			return attemptErr
		}
		if !core.IsRetryableError(attemptErr) || state.emittedVisible || attempt >= retry.MaxRetries {
			return attemptErr
		}

		delay := core.ComputeBackoffDelay(retry, attempt)
		if err := core.SleepContext(ctx, delay); err != nil {
			return err
		}
		attempt++
	}
}

// streamOnce consumes one SDK stream and emits canonical events.
func (p *Provider) streamOnce(
	ctx context.Context,
	params anthropic.MessageNewParams,
	events chan<- core.Event,
	state *streamState,
) error {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() {
		_ = stream.Close()
	}()

	if !state.startEmitted {
		if err := core.SendEvent(ctx, events, core.Event{Type: core.EventStart}); err != nil {
			return err
		}
		state.startEmitted = true
	}

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		event := stream.Current()
		if err := handleSDKStreamEvent(ctx, event, events, state); err != nil {
			return err
		}
		if state.emittedDone {
			return nil
		}
	}

	if err := stream.Err(); err != nil {
		wrapped := fmt.Errorf("anthropic sdk stream: %w", err)
		if isRetryableProviderError(err) {
			return core.MarkRetryable(wrapped)
		}
		return wrapped
	}

	if state.emittedDone {
		return nil
	}

	return core.MarkRetryable(errors.New("anthropic stream ended without message_stop"))
}

// handleSDKStreamEvent maps raw Anthropic stream events into canonical event payloads.
func handleSDKStreamEvent(
	ctx context.Context,
	event anthropic.MessageStreamEventUnion,
	events chan<- core.Event,
	state *streamState,
) error {
	switch variant := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		applyStartUsage(&state.usage, variant.Message.Usage)
		state.usage.TotalTokens = state.usage.TokenCount()
		return core.SendEvent(ctx, events, core.Event{Type: core.EventUsage, Usage: state.usage.Clone()})

	case anthropic.ContentBlockStartEvent:
		block, ok := variant.ContentBlock.AsAny().(anthropic.TextBlock)
		if !ok || block.Text == "" {
			return nil
		}
		state.emittedVisible = true
		return core.SendEvent(ctx, events, core.Event{Type: core.EventTextDelta, TextDelta: block.Text})

	case anthropic.ContentBlockDeltaEvent:
		delta, ok := variant.Delta.AsAny().(anthropic.TextDelta)
		if !ok {
			return nil
		}
		state.emittedVisible = true
		return core.SendEvent(ctx, events, core.Event{Type: core.EventTextDelta, TextDelta: delta.Text})

	case anthropic.MessageDeltaEvent:
		if variant.Delta.StopReason != "" {
			reason, err := mapStopReason(string(variant.Delta.StopReason))
			if err != nil {
				return err
			}
			state.reason = reason
		}
		applyDeltaUsage(&state.usage, variant.Usage)
		state.usage.TotalTokens = state.usage.TokenCount()
		return core.SendEvent(ctx, events, core.Event{Type: core.EventUsage, Usage: state.usage.Clone()})

	case anthropic.MessageStopEvent:
		state.emittedDone = true
		return core.SendEvent(ctx, events, core.Event{
			Type: core.EventDone,
			Done: &core.DonePayload{
				Reason: state.reason,
				Usage:  state.usage,
			},
		})
	}

	return nil
}

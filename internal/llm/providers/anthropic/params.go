package anthropicprovider

import (
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/ppiont/socratex/internal/llm/core"
)

// defaultMaxTokens is used when callers do not provide an explicit token budget.
const defaultMaxTokens = 1024

const dataURLBase64Marker = ";base64,"

// mapStopReason maps Anthropic stop reasons to canonical provider-agnostic values.
func mapStopReason(reason string) (core.StopReason, error) {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return core.StopReasonStop, nil
	case "max_tokens":
		return core.StopReasonLength, nil
	case "refusal", "sensitive":
		return core.StopReasonError, nil
	default:
		return "", fmt.Errorf("unhandled stop reason: %s", reason)
	}
}

// toAnthropicSDKParams validates and converts a canonical request into SDK params.
func toAnthropicSDKParams(req *core.Request) (anthropic.MessageNewParams, error) {
	if req == nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: request is nil", core.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Model) == "" {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: model is required", core.ErrInvalidRequest)
	}

	messages, err := toSDKMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if userID := strings.TrimSpace(req.Metadata["user_id"]); userID != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(userID)}
	}

	return params, nil
}

// toSDKMessages converts canonical conversation messages into Anthropic SDK messages.
func toSDKMessages(messages []core.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case core.RoleUser:
			blocks, err := toSDKContentBlocks(msg.Parts)
			if err != nil {
				return nil, err
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case core.RoleAssistant:
			blocks := toSDKTextBlocks(msg.Parts)
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("%w: unsupported role %q", core.ErrInvalidRequest, msg.Role)
		}
	}

	return out, nil
}

// toSDKContentBlocks converts user parts, keeping text and image parts.
func toSDKContentBlocks(parts []core.Part) ([]anthropic.ContentBlockParamUnion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case core.PartTypeText:
			if part.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case core.PartTypeImage:
			block, err := toSDKImageBlock(part)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			return nil, fmt.Errorf("%w: unsupported part type %q", core.ErrInvalidRequest, part.Type)
		}
	}
	return blocks, nil
}

// toSDKImageBlock maps an image part to a base64 or url image source.
func toSDKImageBlock(part core.Part) (anthropic.ContentBlockParamUnion, error) {
	url := strings.TrimSpace(part.URL)
	if url == "" {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: image part missing url", core.ErrInvalidRequest)
	}

	if strings.HasPrefix(url, "data:") {
		marker := strings.Index(url, dataURLBase64Marker)
		if marker < 0 {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: image data url is not base64", core.ErrInvalidRequest)
		}
		mediaType := strings.TrimSpace(part.MediaType)
		if mediaType == "" {
			mediaType = strings.TrimPrefix(url[:marker], "data:")
		}
		data := url[marker+len(dataURLBase64Marker):]
		if data == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: image data url is empty", core.ErrInvalidRequest)
		}
		return anthropic.NewImageBlockBase64(mediaType, data), nil
	}

	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: url}), nil
}

// toSDKTextBlocks keeps only non-empty text parts for assistant messages.
func toSDKTextBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		if part.Type != core.PartTypeText || part.Text == "" {
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(part.Text))
	}
	return blocks
}

package core

// Role identifies the message author in the canonical request format.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason represents the canonical reason a model response stopped.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonLength  StopReason = "length"
	StopReasonError   StopReason = "error"
	StopReasonAborted StopReason = "aborted"
)

// PartType identifies content part variants.
type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
)

// Part is one typed content fragment of a message. Image parts carry a
// hosted or data URL plus media type and no text; a message made of image
// parts only is valid.
type Part struct {
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	URL       string   `json:"url,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ImagePart builds an image content part from a url and media type.
func ImagePart(url, mediaType string) Part {
	return Part{Type: PartTypeImage, URL: url, MediaType: mediaType}
}

// Message is the provider-agnostic conversation record.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts,omitempty"`
}

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	out := ""
	for _, part := range m.Parts {
		if part.Type != PartTypeText || part.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}

// UserTextMessage builds a single-part user message.
func UserTextMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// Usage tracks provider token accounting.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TokenCount returns the total tokens consumed across all usage buckets.
func (u Usage) TokenCount() int {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheWriteTokens
}

// Clone returns a copy safe to share as pointer payload.
func (u Usage) Clone() *Usage {
	copied := u
	return &copied
}

// CloneParts returns a detached copy of a part slice.
func CloneParts(parts []Part) []Part {
	if len(parts) == 0 {
		return nil
	}
	return append([]Part(nil), parts...)
}

// CloneMessages returns a detached copy of a message slice.
func CloneMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]Message, 0, len(messages))
	for _, message := range messages {
		out = append(out, Message{
			Role:  message.Role,
			Parts: CloneParts(message.Parts),
		})
	}
	return out
}

package chat

import (
	"strings"

	"github.com/ppiont/socratex/internal/llm"
)

// DefaultTitle names sessions without any user text yet.
const DefaultTitle = "New Chat"

// titleMaxRunes caps derived titles, counted in runes so multibyte
// text is never split mid-character.
const titleMaxRunes = 50

// DeriveTitle derives a session title from the first user message.
// It takes the first non-empty text part, trims whitespace, and
// truncates to titleMaxRunes runes with an ellipsis.
func DeriveTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role != llm.RoleUser {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type != llm.PartTypeText {
				continue
			}
			title := strings.TrimSpace(part.Text)
			if title == "" {
				continue
			}
			return truncateTitle(title)
		}
		// Title comes from the first user message only, even when
		// that message carries no usable text.
		break
	}
	return DefaultTitle
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= titleMaxRunes {
		return title
	}
	return string(runes[:titleMaxRunes]) + "…"
}

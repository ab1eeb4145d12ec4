package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ppiont/socratex/internal/chat"
	"github.com/ppiont/socratex/internal/llm"
)

const minWrapWidth = 20

// ChatModel renders the displayed session's messages. It holds only
// view state; message content always comes from the controller.
type ChatModel struct {
	messages  []chat.Message
	scrollTop int

	// viewportHeight is the number of visible content lines inside the
	// chat panel. 0 means unconstrained.
	viewportHeight int
	wrapWidth      int
}

// NewChatModel creates an empty chat view.
func NewChatModel() ChatModel {
	return ChatModel{}
}

// SetMessages replaces the rendered conversation. The view follows
// the tail unless the user scrolled away from it.
func (m *ChatModel) SetMessages(messages []chat.Message) {
	wasAtBottom := m.isAtBottom()
	m.messages = messages
	if wasAtBottom {
		m.scrollToBottom()
		return
	}
	m.clampScrollTop()
}

// SetViewportHeight configures the visible line count for chat content.
func (m *ChatModel) SetViewportHeight(height int) {
	if height < 0 {
		height = 0
	}
	m.viewportHeight = height
	m.clampScrollTop()
}

// SetWrapWidth configures the column where message text wraps.
func (m *ChatModel) SetWrapWidth(width int) {
	if width < 0 {
		width = 0
	}
	m.wrapWidth = width
	m.clampScrollTop()
}

// ScrollUp moves the chat viewport up by lines.
func (m *ChatModel) ScrollUp(lines int) {
	if lines <= 0 {
		return
	}
	m.scrollTop -= lines
	m.clampScrollTop()
}

// ScrollDown moves the chat viewport down by lines.
func (m *ChatModel) ScrollDown(lines int) {
	if lines <= 0 {
		return
	}
	m.scrollTop += lines
	m.clampScrollTop()
}

// PageUp scrolls one viewport up.
func (m *ChatModel) PageUp() {
	step := m.viewportHeight
	if step <= 0 {
		step = 10
	}
	m.ScrollUp(step)
}

// PageDown scrolls one viewport down.
func (m *ChatModel) PageDown() {
	step := m.viewportHeight
	if step <= 0 {
		step = 10
	}
	m.ScrollDown(step)
}

// ScrollToTop jumps to the oldest messages.
func (m *ChatModel) ScrollToTop() {
	m.scrollTop = 0
}

// ScrollToBottom jumps to the most recent messages.
func (m *ChatModel) ScrollToBottom() {
	m.scrollToBottom()
}

// Render draws the conversation inside a panel.
func (m ChatModel) Render(width int, theme Theme) string {
	if len(m.messages) == 0 {
		return renderPanel(width, theme.PanelStyle, "No messages yet. Ask a question to begin.")
	}

	lines := m.renderedLines(theme)
	if m.viewportHeight > 0 && len(lines) > m.viewportHeight {
		start := m.scrollTop
		maxTop := len(lines) - m.viewportHeight
		if start < 0 {
			start = 0
		}
		if start > maxTop {
			start = maxTop
		}
		lines = lines[start : start+m.viewportHeight]
	}

	return renderPanel(width, theme.PanelStyle, strings.Join(lines, "\n"))
}

// renderedLines flattens messages into display lines: a styled role
// prefix on the first line, wrapped text below, and placeholders for
// image parts.
func (m ChatModel) renderedLines(theme Theme) []string {
	lines := make([]string, 0, len(m.messages)*2)
	for _, message := range m.messages {
		prefix, style := rolePrefix(message.Role, theme)
		body := m.renderParts(message.Parts)
		raw := strings.Split(body, "\n")
		lines = append(lines, style.Render(prefix)+" "+raw[0])
		if len(raw) > 1 {
			lines = append(lines, raw[1:]...)
		}
	}
	return lines
}

func (m ChatModel) renderParts(parts []llm.Part) string {
	rendered := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case llm.PartTypeText:
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			rendered = append(rendered, m.wrap(text))
		case llm.PartTypeImage:
			label := part.MediaType
			if label == "" {
				label = "image"
			}
			rendered = append(rendered, "[attachment: "+label+"]")
		}
	}
	if len(rendered) == 0 {
		return "(empty)"
	}
	return strings.Join(rendered, "\n")
}

func (m ChatModel) wrap(text string) string {
	width := m.wrapWidth
	if width <= 0 {
		return text
	}
	if width < minWrapWidth {
		width = minWrapWidth
	}
	return wordwrap.String(text, width)
}

func rolePrefix(role llm.Role, theme Theme) (string, lipgloss.Style) {
	if role == llm.RoleAssistant {
		return "tutor:", theme.AssistantPrefixStyle
	}
	return "you:", theme.UserPrefixStyle
}

func renderPanel(width int, style lipgloss.Style, content string) string {
	if width > 0 {
		return style.Width(width).Render(content)
	}
	return style.Render(content)
}

func (m *ChatModel) isAtBottom() bool {
	if m.viewportHeight <= 0 {
		return true
	}
	return m.scrollTop >= m.maxScrollTop()
}

func (m *ChatModel) maxScrollTop() int {
	if m.viewportHeight <= 0 {
		return 0
	}
	maxTop := m.totalRenderedLines() - m.viewportHeight
	if maxTop < 0 {
		return 0
	}
	return maxTop
}

func (m *ChatModel) scrollToBottom() {
	m.scrollTop = m.maxScrollTop()
}

func (m *ChatModel) clampScrollTop() {
	if m.scrollTop < 0 {
		m.scrollTop = 0
		return
	}
	maxTop := m.maxScrollTop()
	if m.scrollTop > maxTop {
		m.scrollTop = maxTop
	}
}

func (m *ChatModel) totalRenderedLines() int {
	total := 0
	for _, message := range m.messages {
		total += len(strings.Split(m.renderParts(message.Parts), "\n"))
	}
	return total
}

package tui

import (
	"fmt"
	"strings"
)

// StatusModel renders the top status bar.
type StatusModel struct {
	Version   string
	ModelName string
	Title     string
	State     string
	Tokens    int
	Notice    string
}

// NewStatusModel constructs status data for rendering.
func NewStatusModel(version, modelName string) StatusModel {
	return StatusModel{
		Version:   strings.TrimSpace(version),
		ModelName: strings.TrimSpace(modelName),
		State:     "idle",
	}
}

// SetState updates the runtime state token.
func (m *StatusModel) SetState(state string) {
	m.State = strings.TrimSpace(state)
	if m.State == "" {
		m.State = "idle"
	}
}

// SetNotice sets a transient message shown at the end of the bar.
func (m *StatusModel) SetNotice(notice string) {
	m.Notice = strings.TrimSpace(notice)
}

// Render draws a one-line status bar.
func (m StatusModel) Render(width int, theme Theme) string {
	parts := []string{
		"socratex " + fallbackText(m.Version, "dev"),
		fallbackText(m.ModelName, "unknown-model"),
		fallbackText(m.Title, "New Chat"),
		"state: " + fallbackText(m.State, "idle"),
	}
	if m.Tokens > 0 {
		parts = append(parts, fmt.Sprintf("tokens: %d", m.Tokens))
	}
	if m.Notice != "" {
		parts = append(parts, m.Notice)
	}
	line := strings.Join(parts, " | ")
	style := theme.StatusBarStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(line)
}

func fallbackText(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

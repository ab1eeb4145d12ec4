package tui

import (
	"strings"
	"time"

	"github.com/ppiont/socratex/internal/chat"
)

// selectorEntry is one line in the session picker: either a recency
// group header or a selectable session.
type selectorEntry struct {
	Header    bool
	Label     string
	SessionID string
}

// selectorState is the open session picker.
type selectorState struct {
	Entries []selectorEntry
	Cursor  int
}

// newSessionSelector builds picker entries from grouped sessions,
// with the cursor on the current session when present.
func newSessionSelector(groups []chat.BucketGroup, currentID string) *selectorState {
	entries := make([]selectorEntry, 0, len(groups)*4)
	cursor := -1
	for _, group := range groups {
		entries = append(entries, selectorEntry{Header: true, Label: string(group.Bucket)})
		for _, sess := range group.Sessions {
			label := sess.Title + "  (" + sess.UpdatedAt.Format(time.DateTime) + ")"
			if sess.ID == currentID {
				label += "  [current]"
			}
			entries = append(entries, selectorEntry{Label: label, SessionID: sess.ID})
			if sess.ID == currentID {
				cursor = len(entries) - 1
			}
		}
	}
	if len(entries) == 0 {
		return nil
	}

	state := &selectorState{Entries: entries, Cursor: cursor}
	if cursor < 0 {
		state.Cursor = state.nextSelectable(0, 1)
	}
	return state
}

// MoveUp moves the cursor to the previous selectable entry, wrapping.
func (s *selectorState) MoveUp() {
	s.Cursor = s.nextSelectable(s.Cursor-1, -1)
}

// MoveDown moves the cursor to the next selectable entry, wrapping.
func (s *selectorState) MoveDown() {
	s.Cursor = s.nextSelectable(s.Cursor+1, 1)
}

// Selected returns the session id under the cursor.
func (s *selectorState) Selected() string {
	if s.Cursor < 0 || s.Cursor >= len(s.Entries) {
		return ""
	}
	return s.Entries[s.Cursor].SessionID
}

// nextSelectable walks from start in direction step until it finds a
// non-header entry, wrapping around the list.
func (s *selectorState) nextSelectable(start, step int) int {
	n := len(s.Entries)
	if n == 0 {
		return -1
	}
	index := start
	for range s.Entries {
		if index < 0 {
			index = n - 1
		}
		if index >= n {
			index = 0
		}
		if !s.Entries[index].Header {
			return index
		}
		index += step
	}
	return -1
}

// Render draws the picker panel.
func (s *selectorState) Render(width int, theme Theme) string {
	lines := make([]string, 0, len(s.Entries)+2)
	lines = append(lines, "Sessions")
	lines = append(lines, "Use ↑/↓ to navigate, Enter to open, d to delete, Esc to close.")
	for index, entry := range s.Entries {
		if entry.Header {
			lines = append(lines, theme.BucketHeaderStyle.Render(entry.Label))
			continue
		}
		prefix := "  "
		if index == s.Cursor {
			prefix = "> "
		}
		lines = append(lines, prefix+entry.Label)
	}
	return renderPanel(width, theme.PanelStyle, strings.Join(lines, "\n"))
}

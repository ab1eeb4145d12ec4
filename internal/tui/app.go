// Package tui implements the terminal front end. The root model owns
// only view state; all conversation state lives in the chat
// controller and is re-read after every controller update.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiont/socratex/internal/chat"
	"github.com/ppiont/socratex/internal/llm"
)

const defaultAppWidth = 100

// AppConfig configures the root BubbleTea model.
type AppConfig struct {
	Version    string
	ModelName  string
	ThemeName  string
	Controller *chat.Controller
}

// controllerUpdateMsg signals that controller state changed.
type controllerUpdateMsg struct{}

// App is the root TUI model.
type App struct {
	theme Theme
	ctrl  *chat.Controller

	width  int
	height int

	status   StatusModel
	chatView ChatModel
	input    InputModel

	selector *selectorState

	// editIndex is the message index being edited, or -1.
	editIndex int

	// renameID is the session being renamed through the input line.
	renameID string
}

// NewApp constructs the root TUI model.
func NewApp(cfg AppConfig) *App {
	model := &App{
		theme:     ResolveTheme(cfg.ThemeName),
		ctrl:      cfg.Controller,
		status:    NewStatusModel(cfg.Version, cfg.ModelName),
		chatView:  NewChatModel(),
		input:     NewInputModel(">", "Ask a question and press Enter"),
		editIndex: -1,
	}
	if model.width == 0 {
		model.width = defaultAppWidth
	}
	model.refresh()
	return model
}

// Init starts listening for controller updates.
func (m *App) Init() tea.Cmd {
	return waitForUpdateCommand(m.ctrl)
}

// Update applies state changes from user input and controller events.
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatView.SetViewportHeight(m.chatViewportHeight())
		m.chatView.SetWrapWidth(m.wrapWidth())
		return m, nil

	case controllerUpdateMsg:
		m.refresh()
		return m, waitForUpdateCommand(m.ctrl)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, nil
}

// View renders status bar, body, and input line.
func (m *App) View() string {
	width := m.width
	if width <= 0 {
		width = defaultAppWidth
	}

	statusLine := m.status.Render(width, m.theme)
	body := m.renderBody(width)
	inputLine := m.input.Render(width, m.theme)
	return strings.Join([]string{statusLine, body, inputLine}, "\n")
}

func (m *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "ctrl+n":
		m.closeSelector()
		m.cancelEdit()
		m.cancelRename()
		m.ctrl.StartNewSession()
		m.refresh()
		return nil
	case "ctrl+o":
		if m.selector != nil {
			m.closeSelector()
			return nil
		}
		return m.openSessionSelector()
	case "ctrl+r":
		m.closeSelector()
		return m.regenerateLastResponse()
	case "ctrl+e":
		m.closeSelector()
		m.cancelRename()
		m.beginEditLastQuestion()
		return nil
	}

	if m.selector != nil {
		return m.handleSelectorKey(msg)
	}

	if msg.Type == tea.KeyEsc {
		if m.editIndex >= 0 {
			m.cancelEdit()
			return nil
		}
		if m.renameID != "" {
			m.cancelRename()
			return nil
		}
		if m.ctrl.IsStreaming() {
			m.ctrl.CancelActiveStream()
			m.refresh()
		}
		return nil
	}

	if m.handleChatScrollKey(msg) {
		return nil
	}

	if submitted := m.input.HandleKey(msg); submitted {
		content := strings.TrimSpace(m.input.Value())
		m.input.Clear()
		return m.handleInputSubmit(content)
	}
	return nil
}

func (m *App) handleInputSubmit(content string) tea.Cmd {
	if content == "" {
		return nil
	}

	if m.renameID != "" {
		id := m.renameID
		m.cancelRename()
		m.ctrl.RenameSession(id, content)
		m.refresh()
		return nil
	}

	var err error
	if m.editIndex >= 0 {
		index := m.editIndex
		m.cancelEdit()
		err = m.ctrl.EditAndBranchAt(index, content)
	} else {
		err = m.ctrl.SendUserMessage([]llm.Part{llm.TextPart(content)})
	}

	if err != nil {
		m.status.SetNotice(err.Error())
	} else {
		m.status.SetNotice("")
	}
	m.refresh()
	return nil
}

func (m *App) regenerateLastResponse() tea.Cmd {
	messages := m.ctrl.DisplayedMessages()
	for index := len(messages) - 1; index >= 0; index-- {
		if messages[index].Role != llm.RoleAssistant {
			continue
		}
		if err := m.ctrl.RegenerateAt(index); err != nil {
			m.status.SetNotice(err.Error())
		}
		m.refresh()
		return nil
	}
	m.status.SetNotice("nothing to regenerate")
	return nil
}

func (m *App) beginEditLastQuestion() {
	messages := m.ctrl.DisplayedMessages()
	for index := len(messages) - 1; index >= 0; index-- {
		if messages[index].Role != llm.RoleUser {
			continue
		}
		m.editIndex = index
		m.input.SetValue(messages[index].Text())
		m.input.SetPrompt("edit>")
		return
	}
	m.status.SetNotice("nothing to edit")
}

func (m *App) cancelEdit() {
	m.editIndex = -1
	m.input.SetPrompt(">")
	m.input.Clear()
}

func (m *App) beginRename(id string) {
	title := ""
	for _, sess := range m.ctrl.Sessions() {
		if sess.ID == id {
			title = sess.Title
			break
		}
	}
	m.renameID = id
	m.input.SetValue(title)
	m.input.SetPrompt("rename>")
}

func (m *App) cancelRename() {
	m.renameID = ""
	m.input.SetPrompt(">")
	m.input.Clear()
}

func (m *App) openSessionSelector() tea.Cmd {
	selector := newSessionSelector(m.ctrl.GroupedSessions(), m.ctrl.DisplayedSessionID())
	if selector == nil {
		m.status.SetNotice("no saved sessions")
		return nil
	}
	m.selector = selector
	return nil
}

func (m *App) closeSelector() {
	m.selector = nil
}

func (m *App) handleSelectorKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeSelector()
		return nil
	case tea.KeyUp:
		m.selector.MoveUp()
		return nil
	case tea.KeyDown:
		m.selector.MoveDown()
		return nil
	case tea.KeyEnter:
		if id := m.selector.Selected(); id != "" {
			m.ctrl.SwitchToSession(id)
		}
		m.closeSelector()
		m.refresh()
		return nil
	}

	switch msg.String() {
	case "d":
		if id := m.selector.Selected(); id != "" {
			m.ctrl.DeleteSession(id)
			m.selector = newSessionSelector(m.ctrl.GroupedSessions(), m.ctrl.DisplayedSessionID())
			m.refresh()
		}
		return nil
	case "r":
		if id := m.selector.Selected(); id != "" {
			m.closeSelector()
			m.beginRename(id)
		}
		return nil
	}
	return nil
}

func (m *App) handleChatScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp:
		m.chatView.ScrollUp(1)
		return true
	case tea.KeyDown:
		m.chatView.ScrollDown(1)
		return true
	case tea.KeyPgUp:
		m.chatView.PageUp()
		return true
	case tea.KeyPgDown:
		m.chatView.PageDown()
		return true
	case tea.KeyHome:
		m.chatView.ScrollToTop()
		return true
	case tea.KeyEnd:
		m.chatView.ScrollToBottom()
		return true
	default:
		return false
	}
}

// refresh re-reads the controller's snapshot into view state.
func (m *App) refresh() {
	m.chatView.SetMessages(m.ctrl.DisplayedMessages())
	m.status.Title = m.ctrl.DisplayedTitle()
	m.status.SetState(string(m.ctrl.Status()))
	m.status.Tokens = m.ctrl.Usage().TokenCount()
	if err := m.ctrl.LastError(); err != nil {
		m.status.SetNotice(err.Error())
	}
}

func (m *App) renderBody(width int) string {
	m.chatView.SetViewportHeight(m.chatViewportHeight())
	m.chatView.SetWrapWidth(m.wrapWidth())
	if m.selector != nil {
		return m.selector.Render(width, m.theme)
	}
	return m.chatView.Render(width, m.theme)
}

func waitForUpdateCommand(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Updates()
		return controllerUpdateMsg{}
	}
}

func (m *App) wrapWidth() int {
	width := m.width
	if width <= 0 {
		width = defaultAppWidth
	}
	return width - m.theme.PanelStyle.GetHorizontalFrameSize() - 12
}

func (m *App) chatViewportHeight() int {
	if m.height <= 0 {
		return 0
	}

	const nonBodyRows = 2 // status + input
	bodyHeight := m.height - nonBodyRows
	if bodyHeight < 1 {
		return 1
	}

	contentHeight := bodyHeight - m.theme.PanelStyle.GetVerticalFrameSize()
	if contentHeight < 1 {
		return 1
	}
	return contentHeight
}

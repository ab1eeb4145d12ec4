package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiont/socratex/internal/llm"
)

// Status describes the lifecycle of the active model request.
type Status string

const (
	// StatusIdle means no request is in flight.
	StatusIdle Status = "idle"
	// StatusSubmitted means a request was sent but no stream event has
	// arrived yet.
	StatusSubmitted Status = "submitted"
	// StatusStreaming means stream events are arriving.
	StatusStreaming Status = "streaming"
)

var (
	// ErrBusy indicates a submit while a request is already in flight.
	ErrBusy = errors.New("chat: a request is already in flight")
	// ErrEmptyMessage indicates a submit with no usable content.
	ErrEmptyMessage = errors.New("chat: message has no content")
)

// Config wires a Controller.
type Config struct {
	Provider llm.Provider
	Store    *Store
	Logger   *log.Logger

	Model       string
	MaxTokens   int
	Temperature *float64

	// SystemPrompt builds the system prompt for a request; it receives
	// the number of user turns already in the session so the prompt can
	// adapt as a conversation deepens. Optional.
	SystemPrompt func(userTurns int) string

	// Now overrides the clock in tests. Optional.
	Now func() time.Time
}

// Controller owns the live session list and coordinates two
// independent concerns: which session is displayed, and which session
// is bound to the in-flight stream. Switching the displayed session
// never cancels a stream; events keep flowing into the bound session
// and the display simply follows whichever session the user is
// looking at.
type Controller struct {
	mu sync.Mutex

	provider llm.Provider
	store    *Store
	logger   *log.Logger

	model        string
	maxTokens    int
	temperature  *float64
	systemPrompt func(userTurns int) string
	now          func() time.Time

	sessions    []Session
	displayedID string
	boundID     string
	status      Status
	cancel      context.CancelFunc

	// streamGen invalidates events from streams that were cancelled or
	// detached; a late event whose generation no longer matches is
	// dropped.
	streamGen uint64

	lastUsage llm.Usage
	lastErr   error

	updates chan struct{}
}

// NewController loads persisted sessions and restores the current
// session pointer.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Provider == nil {
		return nil, errors.New("chat: provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("chat: model is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		provider:     cfg.Provider,
		store:        cfg.Store,
		logger:       logger,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
		now:          now,
		status:       StatusIdle,
		updates:      make(chan struct{}, 64),
	}

	c.sessions = cfg.Store.ListAll()
	if currentID := cfg.Store.CurrentID(); currentID != "" {
		if _, ok := c.findSessionLocked(currentID); ok {
			c.displayedID = currentID
		}
	}
	return c, nil
}

// Updates signals state changes. The channel is lossy; a pending
// signal already covers any number of coalesced changes.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Status returns the current request lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsStreaming reports whether a request is in flight.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != StatusIdle
}

// Usage returns the most recent token usage snapshot.
func (c *Controller) Usage() llm.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// LastError returns the most recent stream failure, cleared by the
// next successful submit.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DisplayedSessionID returns the id of the displayed session, or ""
// when a fresh unsaved conversation is displayed.
func (c *Controller) DisplayedSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayedID
}

// DisplayedTitle returns the title of the displayed session.
func (c *Controller) DisplayedTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.findSessionLocked(c.displayedID); ok {
		return sess.Title
	}
	return DefaultTitle
}

// DisplayedMessages returns a snapshot of the displayed session's
// messages. The display is a pure function of controller state, so a
// stream bound to another session never leaks into this view.
func (c *Controller) DisplayedMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.findSessionLocked(c.displayedID)
	if !ok {
		return nil
	}
	return CloneMessageList(sess.Messages)
}

// Sessions returns a snapshot of all live sessions, most recently
// updated first.
func (c *Controller) Sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// GroupedSessions returns the live sessions grouped by recency.
func (c *Controller) GroupedSessions() []BucketGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GroupByRecency(c.sessions, c.now())
}

// SendUserMessage appends a user turn to the displayed session and
// submits the session history to the provider. A fresh session is
// minted when no session is displayed.
func (c *Controller) SendUserMessage(parts []llm.Part) error {
	if !hasContent(parts) {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusIdle {
		return ErrBusy
	}

	sess := c.ensureDisplayedSessionLocked()
	sess.Messages = append(sess.Messages, NewUserMessage(parts))
	if sess.Title == DefaultTitle {
		sess.Title = DeriveTitle(sess.Messages)
	}
	c.persistLocked(sess)

	return c.startStreamLocked(sess.ID)
}

// RegenerateAt discards the assistant message at index in the
// displayed session, along with everything after it, and resubmits the
// history ending at the preceding user turn. Out-of-range indexes and
// non-assistant targets are no-ops.
func (c *Controller) RegenerateAt(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusIdle {
		return ErrBusy
	}

	sess, ok := c.findSessionLocked(c.displayedID)
	if !ok {
		return nil
	}
	kept, ok := regenerateCut(sess.Messages, index)
	if !ok {
		c.logger.Debug("regenerate target rejected", "session", sess.ID, "index", index)
		return nil
	}

	sess.Messages = kept
	c.persistLocked(sess)
	return c.startStreamLocked(sess.ID)
}

// EditAndBranchAt replaces the user message at index in the displayed
// session with newText, discarding that message and everything after
// it, then submits the rewritten history. Out-of-range indexes and
// non-user targets are no-ops.
func (c *Controller) EditAndBranchAt(index int, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusIdle {
		return ErrBusy
	}

	sess, ok := c.findSessionLocked(c.displayedID)
	if !ok {
		return nil
	}
	kept, ok := editBranchCut(sess.Messages, index)
	if !ok {
		c.logger.Debug("edit target rejected", "session", sess.ID, "index", index)
		return nil
	}

	sess.Messages = append(kept, NewUserMessage([]llm.Part{llm.TextPart(newText)}))
	sess.Title = DeriveTitle(sess.Messages)
	c.persistLocked(sess)
	return c.startStreamLocked(sess.ID)
}

// SwitchToSession changes which session is displayed. An in-flight
// stream keeps running against its bound session.
func (c *Controller) SwitchToSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.findSessionLocked(id); !ok {
		return
	}
	c.displayedID = id
	c.store.SetCurrentID(id)
	c.notifyLocked()
}

// StartNewSession displays a fresh unsaved conversation. The session
// record is minted lazily on the first submit.
func (c *Controller) StartNewSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayedID = ""
	c.store.SetCurrentID("")
	c.notifyLocked()
}

// DeleteSession removes a session from the live list and the store.
// Deleting the stream-bound session cancels the stream immediately.
func (c *Controller) DeleteSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}

	c.sessions = append(c.sessions[:index], c.sessions[index+1:]...)
	c.store.Remove(id)

	if c.boundID == id {
		c.detachStreamLocked()
	}
	if c.displayedID == id {
		c.displayedID = ""
		c.store.SetCurrentID("")
	}
	c.notifyLocked()
}

// RenameSession sets a session's title.
func (c *Controller) RenameSession(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.findSessionLocked(id)
	if !ok {
		return
	}
	sess.Title = title
	c.persistLocked(sess)
	c.notifyLocked()
}

// CancelActiveStream aborts the in-flight request. Partial assistant
// output already received stays in the bound session.
func (c *Controller) CancelActiveStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusIdle {
		return
	}
	c.detachStreamLocked()
	c.notifyLocked()
}

// ensureDisplayedSessionLocked returns the displayed session, minting
// and displaying a new one when none is displayed.
func (c *Controller) ensureDisplayedSessionLocked() *Session {
	if sess, ok := c.findSessionLocked(c.displayedID); ok {
		return sess
	}
	sess := NewSession(c.now())
	c.sessions = append([]Session{sess}, c.sessions...)
	c.displayedID = sess.ID
	c.store.SetCurrentID(sess.ID)
	return &c.sessions[0]
}

// findSessionLocked returns a pointer into the live list.
func (c *Controller) findSessionLocked(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			return &c.sessions[i], true
		}
	}
	return nil, false
}

// persistLocked stamps the session and writes a full snapshot.
func (c *Controller) persistLocked(sess *Session) {
	sess.UpdatedAt = c.now()
	c.store.Upsert(sess.Clone())
}

// startStreamLocked submits the session's history to the provider and
// spawns the event pump. The caller holds the lock and has already
// persisted the submitted history.
func (c *Controller) startStreamLocked(sessionID string) error {
	sess, ok := c.findSessionLocked(sessionID)
	if !ok {
		return nil
	}

	req := &llm.Request{
		Model:       c.model,
		Messages:    transportMessages(sess.Messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if c.systemPrompt != nil {
		req.System = c.systemPrompt(countUserTurns(sess.Messages))
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.provider.Stream(ctx, req)
	if err != nil {
		cancel()
		c.lastErr = err
		c.logger.Error("submit failed", "session", sessionID, "err", err)
		c.notifyLocked()
		return err
	}

	c.streamGen++
	gen := c.streamGen
	c.boundID = sessionID
	c.status = StatusSubmitted
	c.cancel = cancel
	c.lastErr = nil
	c.notifyLocked()

	go c.pumpEvents(gen, events)
	return nil
}

// pumpEvents forwards provider events into the controller until the
// channel closes.
func (c *Controller) pumpEvents(gen uint64, events <-chan llm.Event) {
	for ev := range events {
		c.ConsumeEvent(gen, ev)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// A stream that ends without a terminal event still releases the
	// controller.
	if gen == c.streamGen && c.status != StatusIdle {
		c.finishStreamLocked()
		c.notifyLocked()
	}
}

// ConsumeEvent applies one stream event to the bound session. Events
// from superseded streams are dropped.
func (c *Controller) ConsumeEvent(gen uint64, ev llm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.streamGen {
		return
	}

	switch ev.Type {
	case llm.EventStart:
		c.status = StatusStreaming

	case llm.EventTextDelta:
		c.status = StatusStreaming
		sess, ok := c.findSessionLocked(c.boundID)
		if !ok {
			return
		}
		appendAssistantText(sess, ev.TextDelta)
		c.persistLocked(sess)

	case llm.EventUsage:
		if ev.Usage != nil {
			c.lastUsage = *ev.Usage
		}

	case llm.EventDone:
		if ev.Done != nil {
			c.lastUsage = ev.Done.Usage
		}
		if sess, ok := c.findSessionLocked(c.boundID); ok {
			c.persistLocked(sess)
		}
		c.finishStreamLocked()

	case llm.EventError:
		if ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
			c.lastErr = ev.Err
			c.logger.Error("stream failed", "session", c.boundID, "err", ev.Err)
		}
		// Partial output stays; the session keeps whatever arrived
		// before the failure.
		if sess, ok := c.findSessionLocked(c.boundID); ok {
			c.persistLocked(sess)
		}
		c.finishStreamLocked()
	}

	c.notifyLocked()
}

// finishStreamLocked returns the controller to idle without touching
// session content.
func (c *Controller) finishStreamLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.boundID = ""
	c.status = StatusIdle
}

// detachStreamLocked cancels the stream and invalidates its
// generation so late events are dropped.
func (c *Controller) detachStreamLocked() {
	c.streamGen++
	c.finishStreamLocked()
}

// appendAssistantText extends the trailing assistant message, creating
// it on the first delta of a response.
func appendAssistantText(sess *Session, delta string) {
	if delta == "" {
		return
	}
	if n := len(sess.Messages); n > 0 && sess.Messages[n-1].Role == llm.RoleAssistant {
		msg := &sess.Messages[n-1]
		if k := len(msg.Parts); k > 0 && msg.Parts[k-1].Type == llm.PartTypeText {
			msg.Parts[k-1].Text += delta
		} else {
			msg.Parts = append(msg.Parts, llm.TextPart(delta))
		}
		return
	}
	msg := NewAssistantMessage()
	msg.Parts = append(msg.Parts, llm.TextPart(delta))
	sess.Messages = append(sess.Messages, msg)
}

func countUserTurns(messages []Message) int {
	count := 0
	for _, msg := range messages {
		if msg.Role == llm.RoleUser {
			count++
		}
	}
	return count
}

func hasContent(parts []llm.Part) bool {
	for _, part := range parts {
		switch part.Type {
		case llm.PartTypeText:
			if strings.TrimSpace(part.Text) != "" {
				return true
			}
		case llm.PartTypeImage:
			if strings.TrimSpace(part.URL) != "" {
				return true
			}
		}
	}
	return false
}

// notifyLocked signals listeners without blocking; a full channel
// already has a pending signal.
func (c *Controller) notifyLocked() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

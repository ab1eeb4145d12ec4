package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiont/socratex/internal/kv"
	"github.com/ppiont/socratex/internal/llm"
	mockprovider "github.com/ppiont/socratex/internal/llm/providers/mock"
)

// manualProvider hands the test full control over stream event timing.
type manualProvider struct {
	mu sync.Mutex
	ch chan llm.Event
}

func (p *manualProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = make(chan llm.Event, 16)
	return p.ch, nil
}

func (p *manualProvider) emit(ev llm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch <- ev
}

func (p *manualProvider) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.ch)
	p.ch = nil
}

// errProvider fails every submit synchronously.
type errProvider struct{ err error }

func (p *errProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Event, error) {
	return nil, p.err
}

// brokenWrites wraps a kv backend and fails all writes.
type brokenWrites struct{ kv.Store }

func (b brokenWrites) Set(key string, value []byte) error {
	return errors.New("disk full")
}

func newTestController(t *testing.T, provider llm.Provider) (*Controller, *Store) {
	t.Helper()
	store := newTestStore(t)
	ctrl, err := NewController(Config{
		Provider: provider,
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl, store
}

func waitFor(t *testing.T, ctrl *Controller, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("condition not reached within deadline")
		case <-ctrl.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()
	waitFor(t, ctrl, func() bool { return ctrl.Status() == StatusIdle })
}

func TestSendUserMessageMintsSession(t *testing.T) {
	t.Parallel()

	ctrl, store := newTestController(t, mockprovider.ScriptedText("Hello ", "world"))

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("hi there")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	waitIdle(t, ctrl)

	messages := ctrl.DisplayedMessages()
	if len(messages) != 2 {
		t.Fatalf("DisplayedMessages() returned %d messages, want 2", len(messages))
	}
	if messages[0].Role != llm.RoleUser || messages[0].Text() != "hi there" {
		t.Fatalf("user message = %+v", messages[0])
	}
	if messages[1].Role != llm.RoleAssistant || messages[1].Text() != "Hello world" {
		t.Fatalf("assistant message = %+v", messages[1])
	}
	if got := ctrl.DisplayedTitle(); got != "hi there" {
		t.Fatalf("DisplayedTitle() = %q, want %q", got, "hi there")
	}

	id := ctrl.DisplayedSessionID()
	if id == "" {
		t.Fatalf("DisplayedSessionID() is empty after send")
	}
	if got := store.CurrentID(); got != id {
		t.Fatalf("persisted current id = %q, want %q", got, id)
	}
	persisted, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(persisted.Messages) != 2 {
		t.Fatalf("persisted session has %d messages, want 2", len(persisted.Messages))
	}
}

func TestStatusLifecycle(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	ctrl, _ := newTestController(t, provider)

	if got := ctrl.Status(); got != StatusIdle {
		t.Fatalf("Status() = %q, want idle", got)
	}

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	if got := ctrl.Status(); got != StatusSubmitted {
		t.Fatalf("Status() after submit = %q, want submitted", got)
	}

	provider.emit(llm.Event{Type: llm.EventStart})
	waitFor(t, ctrl, func() bool { return ctrl.Status() == StatusStreaming })

	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: "answer"})
	provider.emit(llm.Event{Type: llm.EventDone, Done: &llm.DonePayload{Reason: llm.StopReasonStop}})
	provider.finish()
	waitIdle(t, ctrl)
}

func TestSwitchDisplayedSessionDuringStream(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	store := newTestStore(t)

	// A second, already-persisted session the user will switch to.
	otherID := "other-session"
	store.Upsert(Session{
		ID:        otherID,
		Title:     "Geometry",
		Messages:  []Message{{ID: "m1", Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("old question")}}},
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	})
	ctrl, err := NewController(Config{
		Provider: provider,
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	ctrl.StartNewSession()
	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("new question")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	boundID := ctrl.DisplayedSessionID()

	provider.emit(llm.Event{Type: llm.EventStart})
	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: "partial "})
	waitFor(t, ctrl, func() bool {
		messages := ctrl.DisplayedMessages()
		return len(messages) == 2 && messages[1].Text() == "partial "
	})

	// Switching the display must not cancel the stream or leak its
	// output into the other session's view.
	ctrl.SwitchToSession(otherID)
	if !ctrl.IsStreaming() {
		t.Fatalf("stream cancelled by display switch")
	}
	displayed := ctrl.DisplayedMessages()
	if len(displayed) != 1 || displayed[0].Text() != "old question" {
		t.Fatalf("displayed messages = %+v, want the other session's history", displayed)
	}

	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: "answer"})
	provider.emit(llm.Event{Type: llm.EventDone, Done: &llm.DonePayload{Reason: llm.StopReasonStop}})
	provider.finish()
	waitIdle(t, ctrl)

	// The bound session received the full response in the background.
	bound, err := store.Load(boundID)
	if err != nil {
		t.Fatalf("Load(bound) error = %v", err)
	}
	if len(bound.Messages) != 2 || bound.Messages[1].Text() != "partial answer" {
		t.Fatalf("bound session messages = %+v", bound.Messages)
	}
}

func TestCancelPreservesPartialOutput(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	ctrl, _ := newTestController(t, provider)

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	provider.emit(llm.Event{Type: llm.EventStart})
	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: "partial"})
	waitFor(t, ctrl, func() bool {
		messages := ctrl.DisplayedMessages()
		return len(messages) == 2 && messages[1].Text() == "partial"
	})

	ctrl.CancelActiveStream()
	if got := ctrl.Status(); got != StatusIdle {
		t.Fatalf("Status() after cancel = %q, want idle", got)
	}

	// A straggler delta from the cancelled stream must be dropped.
	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: " stale"})
	provider.finish()
	time.Sleep(50 * time.Millisecond)

	messages := ctrl.DisplayedMessages()
	if len(messages) != 2 || messages[1].Text() != "partial" {
		t.Fatalf("messages after cancel = %+v, want partial output preserved", messages)
	}
}

func TestDeleteBoundSessionCancelsStream(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	ctrl, store := newTestController(t, provider)

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	id := ctrl.DisplayedSessionID()
	provider.emit(llm.Event{Type: llm.EventStart})
	waitFor(t, ctrl, func() bool { return ctrl.Status() == StatusStreaming })

	ctrl.DeleteSession(id)
	if got := ctrl.Status(); got != StatusIdle {
		t.Fatalf("Status() after delete = %q, want idle", got)
	}
	if got := ctrl.DisplayedSessionID(); got != "" {
		t.Fatalf("DisplayedSessionID() after delete = %q, want empty", got)
	}
	if len(ctrl.Sessions()) != 0 {
		t.Fatalf("Sessions() after delete = %v, want empty", ctrl.Sessions())
	}
	if _, err := store.Load(id); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrNotFound", err)
	}

	provider.finish()
}

func seedHistorySession(t *testing.T, store *Store) string {
	t.Helper()
	now := time.Now().Add(-time.Minute)
	sess := Session{
		ID:        "seeded",
		Title:     "first question",
		Messages:  historyFixture(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.Upsert(sess)
	store.SetCurrentID(sess.ID)
	return sess.ID
}

func TestRegenerateAt(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id := seedHistorySession(t, store)
	ctrl, err := NewController(Config{
		Provider: mockprovider.ScriptedText("fresh answer"),
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if err := ctrl.RegenerateAt(3); err != nil {
		t.Fatalf("RegenerateAt() error = %v", err)
	}
	waitIdle(t, ctrl)

	messages := ctrl.DisplayedMessages()
	assertIDs(t, messages[:3], "u1", "a1", "u2")
	if len(messages) != 4 {
		t.Fatalf("messages after regenerate = %v, want 4 entries", messageIDs(messages))
	}
	if messages[3].Role != llm.RoleAssistant || messages[3].Text() != "fresh answer" {
		t.Fatalf("regenerated message = %+v", messages[3])
	}
	if messages[3].ID == "a2" {
		t.Fatalf("regenerated message reused the old id")
	}

	persisted, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(persisted.Messages) != 4 {
		t.Fatalf("persisted messages = %v", messageIDs(persisted.Messages))
	}
}

func TestEditAndBranchAt(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedHistorySession(t, store)
	ctrl, err := NewController(Config{
		Provider: mockprovider.ScriptedText("branched answer"),
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if err := ctrl.EditAndBranchAt(2, "revised question"); err != nil {
		t.Fatalf("EditAndBranchAt() error = %v", err)
	}
	waitIdle(t, ctrl)

	messages := ctrl.DisplayedMessages()
	if len(messages) != 4 {
		t.Fatalf("messages after edit = %v, want 4 entries", messageIDs(messages))
	}
	assertIDs(t, messages[:2], "u1", "a1")
	if messages[2].Role != llm.RoleUser || messages[2].Text() != "revised question" {
		t.Fatalf("edited message = %+v", messages[2])
	}
	if messages[3].Role != llm.RoleAssistant || messages[3].Text() != "branched answer" {
		t.Fatalf("branched response = %+v", messages[3])
	}
}

func TestHistoryEditsRejectInvalidTargets(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedHistorySession(t, store)
	ctrl, err := NewController(Config{
		Provider: &errProvider{err: errors.New("should not be called")},
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	before := messageIDs(ctrl.DisplayedMessages())

	// Wrong role and out of range are silent no-ops.
	if err := ctrl.RegenerateAt(2); err != nil {
		t.Fatalf("RegenerateAt(user target) error = %v", err)
	}
	if err := ctrl.RegenerateAt(99); err != nil {
		t.Fatalf("RegenerateAt(out of range) error = %v", err)
	}
	if err := ctrl.EditAndBranchAt(1, "text"); err != nil {
		t.Fatalf("EditAndBranchAt(assistant target) error = %v", err)
	}
	if err := ctrl.EditAndBranchAt(-1, "text"); err != nil {
		t.Fatalf("EditAndBranchAt(out of range) error = %v", err)
	}

	after := messageIDs(ctrl.DisplayedMessages())
	if len(before) != len(after) {
		t.Fatalf("history changed by rejected edit: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("history changed by rejected edit: %v -> %v", before, after)
		}
	}
	if ctrl.Status() != StatusIdle {
		t.Fatalf("Status() = %q after rejected edits, want idle", ctrl.Status())
	}
}

func TestSendWhileBusyReturnsErrBusy(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	ctrl, _ := newTestController(t, provider)

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("one")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("two")}); !errors.Is(err, ErrBusy) {
		t.Fatalf("SendUserMessage() while busy error = %v, want ErrBusy", err)
	}
	if err := ctrl.RegenerateAt(0); !errors.Is(err, ErrBusy) {
		t.Fatalf("RegenerateAt() while busy error = %v, want ErrBusy", err)
	}

	provider.emit(llm.Event{Type: llm.EventDone, Done: &llm.DonePayload{Reason: llm.StopReasonStop}})
	provider.finish()
	waitIdle(t, ctrl)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	ctrl, _ := newTestController(t, mockprovider.ScriptedText("x"))

	if err := ctrl.SendUserMessage(nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("SendUserMessage(nil) error = %v, want ErrEmptyMessage", err)
	}
	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("   ")}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("SendUserMessage(blank) error = %v, want ErrEmptyMessage", err)
	}
	if len(ctrl.Sessions()) != 0 {
		t.Fatalf("empty submit minted a session")
	}
}

func TestSubmitFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	submitErr := errors.New("api down")
	ctrl, _ := newTestController(t, &errProvider{err: submitErr})

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); !errors.Is(err, submitErr) {
		t.Fatalf("SendUserMessage() error = %v, want %v", err, submitErr)
	}

	// The user turn stays in the history; no rollback on submit failure.
	messages := ctrl.DisplayedMessages()
	if len(messages) != 1 || messages[0].Role != llm.RoleUser {
		t.Fatalf("messages after failed submit = %+v", messages)
	}
	if ctrl.Status() != StatusIdle {
		t.Fatalf("Status() = %q after failed submit, want idle", ctrl.Status())
	}
	if !errors.Is(ctrl.LastError(), submitErr) {
		t.Fatalf("LastError() = %v, want %v", ctrl.LastError(), submitErr)
	}
}

func TestStreamErrorKeepsPartialOutput(t *testing.T) {
	t.Parallel()

	provider := &manualProvider{}
	ctrl, _ := newTestController(t, provider)

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	provider.emit(llm.Event{Type: llm.EventStart})
	provider.emit(llm.Event{Type: llm.EventTextDelta, TextDelta: "partial"})
	provider.emit(llm.Event{
		Type: llm.EventError,
		Done: &llm.DonePayload{Reason: llm.StopReasonError},
		Err:  errors.New("overloaded"),
	})
	provider.finish()
	waitIdle(t, ctrl)

	messages := ctrl.DisplayedMessages()
	if len(messages) != 2 || messages[1].Text() != "partial" {
		t.Fatalf("messages after stream error = %+v", messages)
	}
	if ctrl.LastError() == nil {
		t.Fatalf("LastError() = nil after stream error")
	}
}

func TestStorageFailureDoesNotBreakConversation(t *testing.T) {
	t.Parallel()

	backend, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	store := NewStore(brokenWrites{backend}, log.New(io.Discard))

	ctrl, err := NewController(Config{
		Provider: mockprovider.ScriptedText("still works"),
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if err := ctrl.SendUserMessage([]llm.Part{llm.TextPart("q")}); err != nil {
		t.Fatalf("SendUserMessage() with broken storage error = %v", err)
	}
	waitIdle(t, ctrl)

	messages := ctrl.DisplayedMessages()
	if len(messages) != 2 || messages[1].Text() != "still works" {
		t.Fatalf("messages with broken storage = %+v", messages)
	}
}

func TestNewControllerRestoresCurrentSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id := seedHistorySession(t, store)

	ctrl, err := NewController(Config{
		Provider: mockprovider.ScriptedText("x"),
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if got := ctrl.DisplayedSessionID(); got != id {
		t.Fatalf("DisplayedSessionID() = %q, want %q", got, id)
	}
	if len(ctrl.DisplayedMessages()) != 4 {
		t.Fatalf("restored messages = %v", messageIDs(ctrl.DisplayedMessages()))
	}
}

func TestRenameSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id := seedHistorySession(t, store)
	ctrl, err := NewController(Config{
		Provider: mockprovider.ScriptedText("x"),
		Store:    store,
		Logger:   log.New(io.Discard),
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	ctrl.RenameSession(id, "Algebra review")
	if got := ctrl.DisplayedTitle(); got != "Algebra review" {
		t.Fatalf("DisplayedTitle() = %q", got)
	}
	persisted, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if persisted.Title != "Algebra review" {
		t.Fatalf("persisted title = %q", persisted.Title)
	}

	// Blank titles are ignored.
	ctrl.RenameSession(id, "   ")
	if got := ctrl.DisplayedTitle(); got != "Algebra review" {
		t.Fatalf("DisplayedTitle() after blank rename = %q", got)
	}
}

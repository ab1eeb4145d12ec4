package mockprovider

import (
	"context"
	"testing"
	"time"

	"github.com/ppiont/socratex/internal/llm/core"
)

func TestScriptedTextEmitsFullSequence(t *testing.T) {
	t.Parallel()

	provider := ScriptedText("Hello ", "world")
	events, err := provider.Stream(context.Background(), &core.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var types []core.EventType
	var text string
	for ev := range events {
		types = append(types, ev.Type)
		text += ev.TextDelta
	}

	want := []core.EventType{core.EventStart, core.EventTextDelta, core.EventTextDelta, core.EventDone}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event types = %v, want %v", types, want)
		}
	}
	if text != "Hello world" {
		t.Fatalf("concatenated text = %q", text)
	}
}

func TestStreamCancellation(t *testing.T) {
	t.Parallel()

	provider := ScriptedText("slow", "response")
	provider.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	events, err := provider.Stream(ctx, &core.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	cancel()

	var last core.Event
	for ev := range events {
		last = ev
	}
	if last.Type != core.EventError {
		t.Fatalf("last event type = %q, want error after cancel", last.Type)
	}
	if last.Done == nil || last.Done.Reason != core.StopReasonAborted {
		t.Fatalf("last event done = %+v, want aborted reason", last.Done)
	}
}

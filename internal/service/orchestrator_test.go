package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/Chorus/internal/adapter/memstore"
	"github.com/Strob0t/Chorus/internal/config"
	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/domain/identity"
	"github.com/Strob0t/Chorus/internal/port/inference"
)

type orchFixture struct {
	orch  *Orchestrator
	queue *GenerationQueue
	store *memstore.Store
	llm   *fakeLLM
	hub   *StreamBroadcaster
}

func newOrchFixture(t *testing.T, llm *fakeLLM, cfg *config.Orchestrator) *orchFixture {
	t.Helper()
	if cfg == nil {
		c := config.Defaults().Orchestrator
		cfg = &c
	}

	store := memstore.New()
	queue := NewGenerationQueue(0)
	hub := NewStreamBroadcaster()
	registry := NewTopicRegistry()
	registry.Register("t1", "gpt-4o")
	identities := NewIdentityService(&fakeProvisioner{})
	window := NewContextWindowService(store, llm, nil, nil, cfg, time.Hour)

	orch := NewOrchestrator(
		context.Background(),
		registry,
		identities,
		window,
		queue,
		NewToolCallProcessor(nil),
		nil,
		hub,
		store,
		llm,
		nil,
		nil,
		cfg,
	)
	return &orchFixture{orch: orch, queue: queue, store: store, llm: llm, hub: hub}
}

func TestProcessMessageGenerates(t *testing.T) {
	llm := &fakeLLM{chat: func(_ context.Context, req inference.Request) (*inference.Result, error) {
		return &inference.Result{Text: "the answer", Model: req.Model}, nil
	}}
	f := newOrchFixture(t, llm, nil)
	ctx := context.Background()

	// The transport persists the inbound message first.
	if _, err := f.store.AppendMessage(ctx, "t1", "alice", chat.RoleUser, "what now?"); err != nil {
		t.Fatal(err)
	}

	msg, err := f.orch.ProcessMessage(ctx, "t1", "what now?", "alice")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg == nil {
		t.Fatal("idle topic should produce a synchronous response")
	}
	if msg.Role != chat.RoleAssistant || msg.Text != "the answer" {
		t.Errorf("response = %s %q", msg.Role, msg.Text)
	}
	if msg.SenderID != identity.SyntheticPersonID("gpt-4o") {
		t.Errorf("response sender = %q, want the synthetic identity", msg.SenderID)
	}

	history, _ := f.store.LoadHistory(ctx, "t1")
	if len(history) != 2 {
		t.Fatalf("history length = %d, want inbound + response", len(history))
	}
	if history[1].Text != "the answer" {
		t.Errorf("persisted response = %q", history[1].Text)
	}

	// The persisted inbound is the history tail, so the prompt must not
	// carry it twice: system prompt plus the one user message.
	req := llm.call(0)
	if len(req.Messages) != 2 {
		t.Fatalf("prompt length = %d, want 2: %+v", len(req.Messages), req.Messages)
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first prompt message role = %q", req.Messages[0].Role)
	}
	if req.Messages[1].Content != "what now?" {
		t.Errorf("last prompt message = %q", req.Messages[1].Content)
	}
	if f.queue.Generating("t1") {
		t.Error("slot should be released after generation")
	}
}

func TestProcessMessageUnregisteredTopic(t *testing.T) {
	f := newOrchFixture(t, &fakeLLM{}, nil)

	_, err := f.orch.ProcessMessage(context.Background(), "nowhere", "hi", "alice")
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	if f.llm.callCount() != 0 {
		t.Error("no inference call for an unregistered topic")
	}
	if f.queue.Generating("nowhere") {
		t.Error("slot must be released on failure")
	}
}

func TestProcessMessageSkipsSelf(t *testing.T) {
	f := newOrchFixture(t, &fakeLLM{}, nil)

	selfID := identity.SyntheticPersonID("gpt-4o")
	msg, err := f.orch.ProcessMessage(context.Background(), "t1", "my own words", selfID)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("self-authored message must not produce a response, got %+v", msg)
	}
	if f.llm.callCount() != 0 {
		t.Error("no inference call for a self-authored message")
	}
}

func TestProcessMessageEmptyResponseNotPersisted(t *testing.T) {
	llm := &fakeLLM{chat: func(context.Context, inference.Request) (*inference.Result, error) {
		return &inference.Result{Text: ""}, nil
	}}
	f := newOrchFixture(t, llm, nil)

	msg, err := f.orch.ProcessMessage(context.Background(), "t1", "hi", "alice")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("empty model output should yield no message, got %+v", msg)
	}
	history, _ := f.store.LoadHistory(context.Background(), "t1")
	if len(history) != 0 {
		t.Errorf("nothing should be persisted, history = %d", len(history))
	}
}

func TestProcessMessageInferenceFailure(t *testing.T) {
	llm := &fakeLLM{chat: func(context.Context, inference.Request) (*inference.Result, error) {
		return nil, errors.New("proxy unreachable")
	}}
	f := newOrchFixture(t, llm, nil)

	_, err := f.orch.ProcessMessage(context.Background(), "t1", "hi", "alice")
	if !errors.Is(err, domain.ErrConnectivity) {
		t.Fatalf("err = %v, want ErrConnectivity", err)
	}
	if f.queue.Generating("t1") {
		t.Error("slot must be released after inference failure")
	}
	history, _ := f.store.LoadHistory(context.Background(), "t1")
	if len(history) != 0 {
		t.Errorf("failed generation must not persist, history = %d", len(history))
	}
}

func TestProcessMessageQueuesWhileGenerating(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	llm := &fakeLLM{}
	llm.chat = func(_ context.Context, req inference.Request) (*inference.Result, error) {
		if first {
			first = false
			close(started)
			<-release
		}
		last := req.Messages[len(req.Messages)-1].Content
		return &inference.Result{Text: "re: " + last}, nil
	}
	f := newOrchFixture(t, llm, nil)
	ctx := context.Background()

	done := make(chan *chat.Message, 1)
	go func() {
		msg, err := f.orch.ProcessMessage(ctx, "t1", "first question", "alice")
		if err != nil {
			t.Errorf("first ProcessMessage: %v", err)
		}
		done <- msg
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first generation never started")
	}

	msg, err := f.orch.ProcessMessage(ctx, "t1", "second question", "bob")
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if msg != nil {
		t.Fatalf("message during an in-flight generation must queue, got %+v", msg)
	}
	if f.queue.PendingCount("t1") != 1 {
		t.Errorf("pending = %d, want 1", f.queue.PendingCount("t1"))
	}

	close(release)
	firstMsg := <-done
	if firstMsg == nil || firstMsg.Text != "re: first question" {
		t.Errorf("first response = %+v", firstMsg)
	}

	// The queued message replays on its own goroutine.
	f.orch.Wait()
	if llm.callCount() != 2 {
		t.Fatalf("inference calls = %d, want 2", llm.callCount())
	}
	replay := llm.call(1)
	if got := replay.Messages[len(replay.Messages)-1].Content; got != "second question" {
		t.Errorf("replayed message = %q", got)
	}
	if f.queue.Generating("t1") {
		t.Error("slot should be idle after the replay drains")
	}
}

func TestProcessMessageRestartTrimsHistory(t *testing.T) {
	cfg := config.Defaults().Orchestrator
	cfg.DefaultContextWindow = 40
	cfg.RestartThreshold = 0.75
	cfg.SystemPromptOverhead = 0
	cfg.HistoryTail = 10
	cfg.RestartTail = 2

	var gotReq inference.Request
	llm := &fakeLLM{chat: func(_ context.Context, req inference.Request) (*inference.Result, error) {
		gotReq = req
		return &inference.Result{Text: "continuing"}, nil
	}}
	f := newOrchFixture(t, llm, &cfg)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = f.store.AppendMessage(ctx, "t1", "alice", chat.RoleUser,
			strings.Repeat("conversation history filler text ", 4))
	}

	if _, err := f.orch.ProcessMessage(ctx, "t1", "fresh question", "alice"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	// After a restart only RestartTail messages go out verbatim:
	// system + 2 tail + new message.
	if len(gotReq.Messages) != 4 {
		t.Fatalf("prompt length = %d, want 4: %+v", len(gotReq.Messages), gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "compressed") {
		t.Errorf("system prompt should carry the continuity summary: %q", gotReq.Messages[0].Content)
	}

	rp, err := f.store.CurrentRestartPoint(ctx, "t1")
	if err != nil {
		t.Fatalf("restart point should be recorded: %v", err)
	}
	if rp.MessageIndex != 6 {
		t.Errorf("restart index = %d, want 6", rp.MessageIndex)
	}
}

func TestProcessMessageStreamsToObservers(t *testing.T) {
	llm := &fakeLLM{chat: func(_ context.Context, req inference.Request) (*inference.Result, error) {
		req.OnChunk("Hel", false, "Hel")
		req.OnChunk("lo", false, "Hello")
		return &inference.Result{Text: "Hello"}, nil
	}}
	f := newOrchFixture(t, llm, nil)
	ctx := context.Background()

	ch, _ := f.hub.Subscribe(ctx, "t1")
	if _, err := f.orch.ProcessMessage(ctx, "t1", "hi", "alice"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	var events []chat.StreamEvent
	for len(events) < 4 {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want 4", len(events))
		}
	}

	if !events[0].Thinking {
		t.Error("first event should mark generation start as thinking")
	}
	if events[1].Chunk != "Hel" || events[2].Chunk != "lo" {
		t.Errorf("chunk events = %q, %q", events[1].Chunk, events[2].Chunk)
	}
	if events[2].Accumulated != "Hello" {
		t.Errorf("accumulated = %q", events[2].Accumulated)
	}
	final := events[3]
	if !final.Final || final.Accumulated != "Hello" {
		t.Errorf("final event = %+v", final)
	}
	for _, ev := range events[1:] {
		if ev.MessageID != events[0].MessageID {
			t.Error("all events of one generation must share a message ID")
		}
	}
}

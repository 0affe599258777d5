package service

import (
	"context"
	"sync"

	"github.com/Strob0t/Chorus/internal/port/inference"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
)

// fakeLLM is a scripted inference service.
type fakeLLM struct {
	mu     sync.Mutex
	calls  []inference.Request
	chat   func(ctx context.Context, req inference.Request) (*inference.Result, error)
	models []inference.ModelInfo
}

func (f *fakeLLM) Chat(ctx context.Context, req inference.Request) (*inference.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.chat != nil {
		return f.chat(ctx, req)
	}
	return &inference.Result{Text: "ok", Model: req.Model}, nil
}

func (f *fakeLLM) ListModels(context.Context) ([]inference.ModelInfo, error) {
	return f.models, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) call(i int) inference.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// fakeProvisioner counts key provisioning calls.
type fakeProvisioner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeProvisioner) EnsureKeys(_ context.Context, personID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, personID)
	return nil
}

func (f *fakeProvisioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeExecutor returns a canned result or error for every tool call.
type fakeExecutor struct {
	mu       sync.Mutex
	lastTool string
	lastArgs map[string]any
	tools    []toolexec.Descriptor
	result   string
	err      error
}

func (f *fakeExecutor) ListTools(context.Context) ([]toolexec.Descriptor, error) {
	return f.tools, nil
}

func (f *fakeExecutor) ExecuteTool(_ context.Context, name string, params map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTool = name
	f.lastArgs = params
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

package modelclient

import (
	"context"
	"testing"
)

type fakeBackend struct {
	lastMessages []Message
}

func (f *fakeBackend) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*Response, error) {
	f.lastMessages = messages
	return &Response{Content: "ok", Finished: true}, nil
}

func TestChatWithContextRendersSystemPromptAndAppendsUserMessage(t *testing.T) {
	backend := &fakeBackend{}
	reg := NewRegistry(func(cfg BackendConfig) (Backend, error) { return backend, nil })
	if err := reg.Register(BackendConfig{Name: "hud", Kind: BackendOpenAI, ModelID: "gpt-5", SystemPrompt: "You are {{ .Name }}."}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := reg.ChatWithContext(context.Background(), "hud", struct{ Name string }{Name: "Nova"}, nil, "hello", nil)
	if err != nil {
		t.Fatalf("ChatWithContext: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("content = %q, want ok", resp.Content)
	}
	if len(backend.lastMessages) != 2 {
		t.Fatalf("messages = %+v, want system+user", backend.lastMessages)
	}
	if backend.lastMessages[0].Content != "You are Nova." {
		t.Fatalf("system prompt = %q, want rendered", backend.lastMessages[0].Content)
	}
	if backend.lastMessages[1].Content != "hello" {
		t.Fatalf("user message = %q, want hello", backend.lastMessages[1].Content)
	}
}

func TestLookupUnknownModelErrors(t *testing.T) {
	reg := NewRegistry(func(cfg BackendConfig) (Backend, error) { return &fakeBackend{}, nil })
	if _, err := reg.ChatWithContext(context.Background(), "nope", nil, nil, "hi", nil); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}

func TestChatStreamWithContextRejectsNonStreamingBackend(t *testing.T) {
	reg := NewRegistry(func(cfg BackendConfig) (Backend, error) { return &fakeBackend{}, nil })
	if err := reg.Register(BackendConfig{Name: "plain", Kind: BackendOllama}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.ChatStreamWithContext(context.Background(), "plain", nil, nil, "hi", nil); err == nil {
		t.Fatalf("expected streaming error for non-streaming backend")
	}
}

// Package modelclient is the registry and shared wire types for the LLM
// backends an agent can be bound to. Each backend package under
// internal/modelclient/<kind> implements Backend against the same
// Message/Tool/Response shapes so the registry can treat every model the
// same way regardless of provider.
package modelclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rakunlabs/sshwarma/internal/render"
)

// BackendKind names which wire protocol a registry entry speaks.
type BackendKind string

const (
	BackendOpenAI    BackendKind = "openai"
	BackendAnthropic BackendKind = "anthropic"
	BackendGemini    BackendKind = "gemini"
	BackendVertex    BackendKind = "vertex"
	BackendOllama    BackendKind = "ollama"
)

// Message is one turn of chat history, backend-agnostic.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant", "tool"
	Content string `json:"content"`
	// ToolCallID identifies which tool call this message answers, when
	// Role is "tool".
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name is the tool name, set on Role "tool" messages and carried
	// through on assistant tool-call messages for backends (Gemini) that
	// need the function name to build their own response shape.
	Name string `json:"name,omitempty"`
}

// Tool describes one callable tool a model may invoke, shaped exactly
// like mcpmanager.Tool so command definitions and MCP tool catalogs can
// be handed to a model without translation.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCall is a model-requested invocation of one Tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Usage reports token accounting, when the backend provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a non-streaming Chat call.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Finished  bool
	Usage     Usage
}

// StreamChunk is one increment of a ChatStream, mirroring the teacher's
// service.StreamChunk shape.
type StreamChunk struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *Usage
	Err          error
}

// Backend is implemented by each per-provider package.
type Backend interface {
	Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*Response, error)
}

// StreamBackend is implemented by backends that support server-sent-event
// streaming. Not every backend does (ollama's Chat-only shape doesn't).
type StreamBackend interface {
	ChatStream(ctx context.Context, model string, messages []Message, tools []Tool) (<-chan StreamChunk, error)
}

// BackendConfig is one models.toml entry (or an Agent's per-agent
// override) before it's resolved into a live Backend.
type BackendConfig struct {
	Name         string          `toml:"name"`
	Kind         BackendKind     `toml:"kind"`
	ModelID      string          `toml:"model_id"`
	Endpoint     string          `toml:"endpoint"`
	APIKey       string          `toml:"api_key"`
	SystemPrompt string          `toml:"system_prompt"`
	Config       json.RawMessage `toml:"config"`
}

// entry is a resolved registry slot: config plus the lazily-built client.
type entry struct {
	cfg     BackendConfig
	backend Backend
}

// Registry maps a short @name (as used in room @mentions) to a resolved
// backend client. Entries are added with Register, which the server
// calls at startup for each models.toml entry; nothing loads entries
// from storage.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	factory func(BackendConfig) (Backend, error)
}

// NewRegistry builds an empty registry. factory constructs a live Backend
// from a BackendConfig; production callers pass Construct (below), tests
// can pass a fake.
func NewRegistry(factory func(BackendConfig) (Backend, error)) *Registry {
	return &Registry{entries: make(map[string]*entry), factory: factory}
}

// Register adds or replaces the entry for cfg.Name. The backend client is
// built eagerly so a bad config (unreachable endpoint for providers that
// validate at construction time, e.g. vertex's ADC lookup) fails at load
// time rather than on first use.
func (r *Registry) Register(cfg BackendConfig) error {
	backend, err := r.factory(cfg)
	if err != nil {
		return fmt.Errorf("build backend %q (%s): %w", cfg.Name, cfg.Kind, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cfg.Name] = &entry{cfg: cfg, backend: backend}
	return nil
}

// Lookup returns the named entry's config and backend.
func (r *Registry) Lookup(name string) (BackendConfig, Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return BackendConfig{}, nil, false
	}
	return e.cfg, e.backend, true
}

// Names lists every registered @name, for completion and `/tools`-style
// introspection.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// ChatWithContext composes history plus a rendered system prompt and the
// new user message into one backend call, returning the reply text. This
// is spec's chat_with_context(model, system_prompt, history, user_message).
func (r *Registry) ChatWithContext(ctx context.Context, name string, promptData any, history []Message, userMessage string, tools []Tool) (*Response, error) {
	cfg, backend, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}

	messages := buildMessages(cfg.SystemPrompt, promptData, history, userMessage)

	resp, err := backend.Chat(ctx, cfg.ModelID, messages, tools)
	if err != nil {
		return nil, fmt.Errorf("chat with %q: %w", name, err)
	}
	return resp, nil
}

// ChatStreamWithContext is the streaming counterpart of ChatWithContext.
// It returns an error if the named backend doesn't implement StreamBackend.
func (r *Registry) ChatStreamWithContext(ctx context.Context, name string, promptData any, history []Message, userMessage string, tools []Tool) (<-chan StreamChunk, error) {
	cfg, backend, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	streamer, ok := backend.(StreamBackend)
	if !ok {
		return nil, fmt.Errorf("model %q (%s) does not support streaming", name, cfg.Kind)
	}

	messages := buildMessages(cfg.SystemPrompt, promptData, history, userMessage)
	ch, err := streamer.ChatStream(ctx, cfg.ModelID, messages, tools)
	if err != nil {
		return nil, fmt.Errorf("chat stream with %q: %w", name, err)
	}
	return ch, nil
}

// buildMessages renders the system prompt (through mugo's templatex when
// it looks like it contains directives) and prepends it to history.
func buildMessages(systemPrompt string, promptData any, history []Message, userMessage string) []Message {
	rendered := systemPrompt
	if promptData != nil && containsTemplateDirective(systemPrompt) {
		if out, err := render.ExecuteWithFuncs(systemPrompt, promptData, nil); err == nil {
			rendered = string(out)
		}
	}

	messages := make([]Message, 0, len(history)+2)
	if rendered != "" {
		messages = append(messages, Message{Role: "system", Content: rendered})
	}
	messages = append(messages, history...)
	if userMessage != "" {
		messages = append(messages, Message{Role: "user", Content: userMessage})
	}
	return messages
}

func containsTemplateDirective(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	return false
}

// Package ollama is the local-Ollama chat backend, generalized from the
// teacher's internal/service/llm/ollama provider. Unlike the other
// backends it talks plain net/http rather than klient — the teacher's
// own Ollama provider does the same, since it's a loopback-only local
// daemon with no auth, retry, or proxy concerns worth a richer client
// for.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

const DefaultBaseURL = "http://localhost:11434/api/chat"

type Provider struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{baseURL: baseURL, http: &http.Client{}}
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolDef struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolDef     `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (p *Provider) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	var toolDefs []toolDef
	for _, t := range tools {
		toolDefs = append(toolDefs, toolDef{Type: "function", Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}})
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: msgs, Tools: toolDefs, Stream: false})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	out := &modelclient.Response{Content: result.Message.Content, Finished: true}
	for _, tc := range result.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, modelclient.ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	if len(out.ToolCalls) > 0 {
		out.Finished = false
	}
	return out, nil
}

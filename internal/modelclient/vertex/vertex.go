// Package vertex is the Vertex AI OpenAI-compatible endpoint backend,
// generalized from the teacher's internal/service/llm/vertex provider.
// Authentication uses Google Application Default Credentials rather than
// a static key, set via GOOGLE_APPLICATION_CREDENTIALS or GCE/Cloud Run
// metadata, matching the teacher exactly.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/worldline-go/klient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

const scope = "https://www.googleapis.com/auth/cloud-platform"

type Provider struct {
	endpointURL string
	tokenSource oauth2.TokenSource
	client      *klient.Client
}

// New builds a Vertex AI provider against the full OpenAI-compatible
// chat-completions endpoint URL, e.g.
// https://us-central1-aiplatform.googleapis.com/v1/projects/P/locations/us-central1/endpoints/openapi/chat/completions
func New(endpointURL string) (*Provider, error) {
	if endpointURL == "" {
		return nil, fmt.Errorf("vertex provider requires an endpoint url")
	}

	ts, err := google.DefaultTokenSource(context.Background(), scope)
	if err != nil {
		return nil, fmt.Errorf("get google application default credentials: %w", err)
	}

	client, err := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithLogger(slog.Default()),
		klient.WithDisableRetry(true),
		klient.WithDisableEnvValues(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	return &Provider{endpointURL: endpointURL, tokenSource: ts, client: client}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolDef     `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
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

type chatResponse struct {
	Error   *apiError `json:"error,omitempty"`
	Choices []choice  `json:"choices"`
	Usage   *usage    `json:"usage,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type choice struct {
	Message      choiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type choiceMessage struct {
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (p *Provider) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
	}
	var toolDefs []toolDef
	for _, t := range tools {
		toolDefs = append(toolDefs, toolDef{Type: "function", Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}})
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: msgs, Tools: toolDefs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	token, err := p.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	var result chatResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		if r.StatusCode != http.StatusOK {
			return fmt.Errorf("vertex returned status %d: %s", r.StatusCode, string(data))
		}
		return json.Unmarshal(data, &result)
	}); err != nil {
		return nil, fmt.Errorf("vertex chat request: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("vertex: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("vertex: no choices in response")
	}

	c := result.Choices[0]
	resp := &modelclient.Response{Content: c.Message.Content, Finished: c.FinishReason != "tool_calls"}
	for _, tc := range c.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		resp.ToolCalls = append(resp.ToolCalls, modelclient.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	if result.Usage != nil {
		resp.Usage = modelclient.Usage{
			PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens: result.Usage.TotalTokens,
		}
	}
	return resp, nil
}

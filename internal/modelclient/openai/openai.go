// Package openai is the OpenAI chat-completions backend, generalized
// from the teacher's internal/service/llm/openai provider.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/worldline-go/klient"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"

type Provider struct {
	apiKey string
	model  string
	client *klient.Client
}

func New(apiKey, baseURL string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if apiKey != "" {
		headers["Authorization"] = []string{"Bearer " + apiKey}
	}

	client, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(headers),
		klient.WithDisableRetry(true),
		klient.WithDisableEnvValues(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return &Provider{apiKey: apiKey, client: client}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolDef     `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
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
	Type    string `json:"type"`
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

func buildRequest(model string, messages []modelclient.Message, tools []modelclient.Tool, stream bool) chatRequest {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
	}
	var toolDefs []toolDef
	for _, t := range tools {
		toolDefs = append(toolDefs, toolDef{
			Type: "function",
			Function: toolFunction{
				Name: t.Name, Description: t.Description, Parameters: t.InputSchema,
			},
		})
	}
	return chatRequest{Model: model, Messages: msgs, Tools: toolDefs, Stream: stream}
}

func (p *Provider) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	reqBody := buildRequest(model, messages, tools, false)
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result chatResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &result)
	}); err != nil {
		return nil, fmt.Errorf("openai chat request: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("openai: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	return toResponse(result), nil
}

func toResponse(result chatResponse) *modelclient.Response {
	c := result.Choices[0]
	resp := &modelclient.Response{
		Content:  c.Message.Content,
		Finished: c.FinishReason != "tool_calls",
	}
	for _, tc := range c.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		resp.ToolCalls = append(resp.ToolCalls, modelclient.ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: args,
		})
	}
	if result.Usage != nil {
		resp.Usage = modelclient.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return resp
}

// ChatStream implements modelclient.StreamBackend using OpenAI's SSE
// chat-completions stream.
func (p *Provider) ChatStream(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (<-chan modelclient.StreamChunk, error) {
	reqBody := buildRequest(model, messages, tools, true)
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(data))
	}

	ch := make(chan modelclient.StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var sr chatResponse
			if err := json.Unmarshal([]byte(data), &sr); err != nil {
				ch <- modelclient.StreamChunk{Err: fmt.Errorf("parse sse chunk: %w", err)}
				return
			}
			if len(sr.Choices) == 0 {
				if sr.Usage != nil {
					ch <- modelclient.StreamChunk{Usage: &modelclient.Usage{
						PromptTokens: sr.Usage.PromptTokens, CompletionTokens: sr.Usage.CompletionTokens,
						TotalTokens: sr.Usage.TotalTokens,
					}}
				}
				continue
			}
			c := sr.Choices[0]
			chunk := modelclient.StreamChunk{Content: c.Message.Content, FinishReason: c.FinishReason}
			for _, tc := range c.Message.ToolCalls {
				var args map[string]any
				if tc.Function.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				}
				chunk.ToolCalls = append(chunk.ToolCalls, modelclient.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
			}
			ch <- chunk
		}
		if err := scanner.Err(); err != nil {
			ch <- modelclient.StreamChunk{Err: fmt.Errorf("stream read error: %w", err)}
		}
	}()

	return ch, nil
}

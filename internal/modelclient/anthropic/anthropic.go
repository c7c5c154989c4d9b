// Package anthropic is the Claude Messages-API backend, generalized
// from the teacher's internal/service/llm/antropic provider.
package anthropic

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

const DefaultBaseURL = "https://api.anthropic.com"

type Provider struct {
	client *klient.Client
}

func New(apiKey, baseURL string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"X-Api-Key":         []string{apiKey},
			"Anthropic-Version": []string{"2023-06-01"},
			"Content-Type":      []string{"application/json"},
		}),
		klient.WithDisableRetry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}
	return &Provider{client: client}, nil
}

type contentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Type       string         `json:"type"`
	Error      *apiError      `json:"error,omitempty"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type apiError struct {
	Message string `json:"message"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (p *Provider) buildBody(model string, messages []modelclient.Message, tools []modelclient.Tool, stream bool) map[string]any {
	var systemPrompt string
	var filtered []map[string]any
	for _, m := range messages {
		if m.Role == "system" {
			if systemPrompt != "" {
				systemPrompt += "\n"
			}
			systemPrompt += m.Content
			continue
		}
		role := m.Role
		if role == "tool" {
			// Anthropic expresses tool results as a user message containing
			// a tool_result content block.
			filtered = append(filtered, map[string]any{
				"role": "user",
				"content": []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": m.ToolCallID,
					"content":     m.Content,
				}},
			})
			continue
		}
		filtered = append(filtered, map[string]any{"role": role, "content": m.Content})
	}

	var anthropicTools []map[string]any
	for _, t := range tools {
		anthropicTools = append(anthropicTools, map[string]any{
			"name": t.Name, "description": t.Description, "input_schema": t.InputSchema,
		})
	}

	body := map[string]any{"model": model, "max_tokens": 4096, "messages": filtered}
	if systemPrompt != "" {
		body["system"] = systemPrompt
	}
	if len(anthropicTools) > 0 {
		body["tools"] = anthropicTools
	}
	if stream {
		body["stream"] = true
	}
	return body
}

func (p *Provider) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	body, err := json.Marshal(p.buildBody(model, messages, tools, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result anthropicResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &result)
	}); err != nil {
		return nil, fmt.Errorf("anthropic chat request: %w", err)
	}

	if result.Type == "error" && result.Error != nil {
		return nil, fmt.Errorf("anthropic: %s", result.Error.Message)
	}

	resp := &modelclient.Response{
		Finished: result.StopReason != "tool_use",
		Usage: modelclient.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
	}
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, modelclient.ToolCall{
				ID: block.ID, Name: block.Name, Arguments: block.Input,
			})
		}
	}
	return resp, nil
}

// ChatStream implements modelclient.StreamBackend for Anthropic's SSE
// message-stream events, collapsing the text_delta/tool-input-delta
// event sequence down to StreamChunk increments.
func (p *Provider) ChatStream(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (<-chan modelclient.StreamChunk, error) {
	body, err := json.Marshal(p.buildBody(model, messages, tools, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, string(data))
	}

	ch := make(chan modelclient.StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var toolID, toolName string
		var toolInput strings.Builder

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var event struct {
				Type         string          `json:"type"`
				Delta        json.RawMessage `json:"delta,omitempty"`
				ContentBlock *contentBlock   `json:"content_block,omitempty"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				ch <- modelclient.StreamChunk{Err: fmt.Errorf("parse sse event: %w", err)}
				return
			}

			switch event.Type {
			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					toolID, toolName = event.ContentBlock.ID, event.ContentBlock.Name
					toolInput.Reset()
				}
			case "content_block_delta":
				var td struct {
					Type        string `json:"type"`
					Text        string `json:"text"`
					PartialJSON string `json:"partial_json"`
				}
				if json.Unmarshal(event.Delta, &td) == nil {
					if td.Type == "text_delta" {
						ch <- modelclient.StreamChunk{Content: td.Text}
					} else if td.Type == "input_json_delta" {
						toolInput.WriteString(td.PartialJSON)
					}
				}
			case "content_block_stop":
				if toolID != "" {
					var args map[string]any
					if toolInput.Len() > 0 {
						_ = json.Unmarshal([]byte(toolInput.String()), &args)
					}
					ch <- modelclient.StreamChunk{ToolCalls: []modelclient.ToolCall{{ID: toolID, Name: toolName, Arguments: args}}}
					toolID, toolName = "", ""
				}
			case "message_delta":
				var md struct {
					StopReason string `json:"stop_reason"`
				}
				if json.Unmarshal(event.Delta, &md) == nil && md.StopReason != "" {
					finish := "stop"
					if md.StopReason == "tool_use" {
						finish = "tool_calls"
					}
					ch <- modelclient.StreamChunk{FinishReason: finish}
				}
			case "message_stop":
				return
			case "error":
				ch <- modelclient.StreamChunk{Err: fmt.Errorf("anthropic stream error: %s", data)}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- modelclient.StreamChunk{Err: fmt.Errorf("stream read error: %w", err)}
		}
	}()

	return ch, nil
}

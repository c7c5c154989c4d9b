// Package gemini is the Google Generative Language API backend,
// generalized from the teacher's internal/service/llm/gemini provider.
// Multimodal content blocks (images/audio/video) are out of scope here —
// sshwarma's buffers carry text/markdown/json/ansi rows only — so this
// is a text-and-tool-call-only subset of the teacher's conversion logic.
package gemini

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

	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/klient"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

type Provider struct {
	client *klient.Client
}

func New(apiKey, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini provider requires an api key")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	client, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithDisableBaseURLCheck(true),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"Content-Type":   []string{"application/json"},
			"x-goog-api-key": []string{apiKey},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client}, nil
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type googleTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type generateContentRequest struct {
	Contents          []content    `json:"contents"`
	Tools             []googleTool `json:"tools,omitempty"`
	SystemInstruction *content     `json:"systemInstruction,omitempty"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	Error         *googleError   `json:"error,omitempty"`
}

type candidate struct {
	Content      *content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func buildRequest(messages []modelclient.Message, tools []modelclient.Tool) *generateContentRequest {
	req := &generateContentRequest{}

	if len(tools) > 0 {
		decls := make([]functionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = functionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}
		}
		req.Tools = []googleTool{{FunctionDeclarations: decls}}
	}

	for _, m := range messages {
		switch m.Role {
		case "system":
			if req.SystemInstruction == nil {
				req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			} else {
				req.SystemInstruction.Parts[0].Text += "\n" + m.Content
			}
		case "user":
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		case "assistant":
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		case "tool":
			name := m.Name
			if name == "" {
				name = m.ToolCallID
			}
			fr := part{FunctionResponse: &functionResponse{Name: name, Response: map[string]any{"result": m.Content}}}
			if n := len(req.Contents); n > 0 && req.Contents[n-1].Role == "user" {
				req.Contents[n-1].Parts = append(req.Contents[n-1].Parts, fr)
			} else {
				req.Contents = append(req.Contents, content{Role: "user", Parts: []part{fr}})
			}
		}
	}
	return req
}

func (p *Provider) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	body, err := json.Marshal(buildRequest(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result generateContentResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &result)
	}); err != nil {
		return nil, fmt.Errorf("gemini chat request: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("gemini: %s (code %d)", result.Error.Message, result.Error.Code)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	return toResponse(&result), nil
}

func toResponse(result *generateContentResponse) *modelclient.Response {
	cand := result.Candidates[0]
	resp := &modelclient.Response{Finished: true}
	if result.UsageMetadata != nil {
		resp.Usage = modelclient.Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		}
	}
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				resp.Content += p.Text
			}
			if p.FunctionCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, modelclient.ToolCall{
					ID: "call_" + ulid.Make().String(), Name: p.FunctionCall.Name, Arguments: p.FunctionCall.Args,
				})
			}
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.Finished = false
	}
	return resp
}

// ChatStream implements modelclient.StreamBackend using Gemini's
// streamGenerateContent?alt=sse endpoint.
func (p *Provider) ChatStream(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (<-chan modelclient.StreamChunk, error) {
	body, err := json.Marshal(buildRequest(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(data))
	}

	ch := make(chan modelclient.StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		hasToolCalls := false
		var lastUsage *modelclient.Usage

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var sr generateContentResponse
			if err := json.Unmarshal([]byte(data), &sr); err != nil {
				ch <- modelclient.StreamChunk{Err: fmt.Errorf("parse sse chunk: %w", err)}
				return
			}
			if sr.Error != nil {
				ch <- modelclient.StreamChunk{Err: fmt.Errorf("gemini error: %s", sr.Error.Message)}
				return
			}
			if sr.UsageMetadata != nil {
				lastUsage = &modelclient.Usage{
					PromptTokens: sr.UsageMetadata.PromptTokenCount, CompletionTokens: sr.UsageMetadata.CandidatesTokenCount,
					TotalTokens: sr.UsageMetadata.TotalTokenCount,
				}
			}
			if len(sr.Candidates) == 0 {
				continue
			}
			cand := sr.Candidates[0]
			chunk := modelclient.StreamChunk{}
			if cand.Content != nil {
				for _, p := range cand.Content.Parts {
					if p.Text != "" {
						chunk.Content += p.Text
					}
					if p.FunctionCall != nil {
						chunk.ToolCalls = append(chunk.ToolCalls, modelclient.ToolCall{
							ID: "call_" + ulid.Make().String(), Name: p.FunctionCall.Name, Arguments: p.FunctionCall.Args,
						})
					}
				}
			}
			if len(chunk.ToolCalls) > 0 {
				hasToolCalls = true
			}
			if cand.FinishReason != "" {
				if hasToolCalls {
					chunk.FinishReason = "tool_calls"
				} else {
					chunk.FinishReason = "stop"
				}
				chunk.Usage = lastUsage
			}
			ch <- chunk
		}
		if err := scanner.Err(); err != nil {
			ch <- modelclient.StreamChunk{Err: fmt.Errorf("stream read error: %w", err)}
		}
	}()

	return ch, nil
}

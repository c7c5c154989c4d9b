package sessioncore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rakunlabs/sshwarma/internal/commands"
	"github.com/rakunlabs/sshwarma/internal/modelclient"
	"github.com/rakunlabs/sshwarma/internal/script"
	"github.com/rakunlabs/sshwarma/internal/statustrack"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

const historyWindow = 50

// handleMention resolves "@name rest" against the model registry and
// drives the chat/tool-call loop (grounded on the teacher's
// Agent.Run: chat, append the assistant turn, execute any tool calls,
// append their results, repeat until the backend reports Finished),
// appending each model reply and tool result as a row in the current
// room. The @mention line itself is not appended here.
func (s *Session) handleMention(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(strings.TrimPrefix(line, "@"), " ")
	if name == "" {
		return fmt.Errorf("mention requires a model name")
	}
	_, buf, ok := s.CurrentRoom()
	if !ok {
		return fmt.Errorf("you must join a room first")
	}
	if _, _, found := s.models.Lookup(name); !found {
		return fmt.Errorf("no model named %q", name)
	}

	history, err := s.recentHistory(ctx, buf.ID)
	if err != nil {
		return err
	}

	tools := s.assembleTools()
	s.statuses.Set(name, statustrack.ParticipantStatus{Kind: statustrack.Thinking})
	defer s.statuses.Clear(name)

	const maxToolRounds = 8
	userMessage := rest
	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.models.ChatWithContext(ctx, name, nil, history, userMessage, tools.messages())
		if err != nil {
			s.statuses.Set(name, statustrack.ParticipantStatus{Kind: statustrack.Errored, Message: err.Error()})
			return fmt.Errorf("chat with %s: %w", name, err)
		}
		if userMessage != "" {
			history = append(history, modelclient.Message{Role: "user", Content: userMessage})
			userMessage = ""
		}

		if resp.Content != "" {
			if _, err := s.store.AppendRow(ctx, sqlite.AppendRowParams{
				BufferID:      buf.ID,
				ContentMethod: sqlite.MethodMessageModel,
				ContentFormat: sqlite.ContentMarkdown,
				Content:       resp.Content,
			}); err != nil {
				return fmt.Errorf("append model reply: %w", err)
			}
			s.dirty.Mark("chat")
		}
		history = append(history, modelclient.Message{Role: "assistant", Content: resp.Content})

		if resp.Finished || len(resp.ToolCalls) == 0 {
			return nil
		}

		s.statuses.Set(name, statustrack.ParticipantStatus{Kind: statustrack.RunningTool, ToolName: resp.ToolCalls[0].Name})
		for _, tc := range resp.ToolCalls {
			result, callErr := tools.call(ctx, s, tc.Name, tc.Arguments)
			if callErr != nil {
				result = "error: " + callErr.Error()
			}
			if _, err := s.store.AppendRow(ctx, sqlite.AppendRowParams{
				BufferID:      buf.ID,
				ContentMethod: sqlite.MethodToolResult,
				ContentFormat: sqlite.ContentText,
				Content:       fmt.Sprintf("%s -> %s", tc.Name, result),
			}); err != nil {
				return fmt.Errorf("append tool result: %w", err)
			}
			history = append(history, modelclient.Message{Role: "tool", ToolCallID: tc.ID, Name: tc.Name, Content: result})
		}
		s.dirty.Mark("chat")
		s.statuses.Set(name, statustrack.ParticipantStatus{Kind: statustrack.Thinking})
	}
	return fmt.Errorf("tool-call loop with %s did not converge after %d rounds", name, maxToolRounds)
}

func (s *Session) recentHistory(ctx context.Context, bufferID string) ([]modelclient.Message, error) {
	rows, err := s.store.ListRows(ctx, bufferID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]modelclient.Message, 0, len(rows))
	for _, r := range rows {
		switch r.ContentMethod {
		case sqlite.MethodMessageUser:
			out = append(out, modelclient.Message{Role: "user", Content: r.Content})
		case sqlite.MethodMessageModel:
			out = append(out, modelclient.Message{Role: "assistant", Content: r.Content})
		}
	}
	return out, nil
}

// toolSet is the merged view of every tool surface a mentioned model
// can call: this session's script-registered tools, the shared
// command catalog, and connected MCP servers. A name present in more
// than one surface resolves script, then command, then MCP — script
// tools are the most specific to the room the model is in.
type toolSet struct {
	script   map[string]script.ToolDef
	command  map[string]commands.ToolDef
	mcpNames map[string]bool
}

func (s *Session) assembleTools() toolSet {
	ts := toolSet{
		script:   s.scriptToolSnapshot(),
		command:  make(map[string]commands.ToolDef),
		mcpNames: make(map[string]bool),
	}
	for _, td := range commands.ToolCatalog() {
		ts.command[td.Tool.Name] = td
	}
	for _, tools := range s.mcp.ListTools() {
		for _, t := range tools {
			ts.mcpNames[t.Name] = true
		}
	}
	return ts
}

// messages renders the merged catalog into the wire Tool shape every
// backend's Chat call expects.
func (ts toolSet) messages() []modelclient.Tool {
	out := make([]modelclient.Tool, 0, len(ts.script)+len(ts.command)+len(ts.mcpNames))
	for _, def := range ts.script {
		out = append(out, modelclient.Tool{Name: def.Name, Description: def.Description, InputSchema: def.InputSchema})
	}
	for _, td := range ts.command {
		out = append(out, modelclient.Tool{Name: td.Tool.Name, Description: td.Tool.Description, InputSchema: marshalSchema(td.Tool.InputSchema)})
	}
	for name := range ts.mcpNames {
		if _, shadowed := ts.script[name]; shadowed {
			continue
		}
		if _, shadowed := ts.command[name]; shadowed {
			continue
		}
		out = append(out, modelclient.Tool{Name: name})
	}
	return out
}

func marshalSchema(schema map[string]any) json.RawMessage {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return raw
}

// call resolves and executes one model-requested tool invocation
// against whichever surface advertises it, per the precedence
// messages() documents.
func (ts toolSet) call(ctx context.Context, s *Session, name string, args map[string]any) (string, error) {
	if def, ok := ts.script[name]; ok {
		result, err := def.Handler(args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", result), nil
	}
	if td, ok := ts.command[name]; ok {
		return td.Handler(ctx, s, args)
	}
	if ts.mcpNames[name] {
		result, _, err := s.mcp.CallTool(ctx, name, args)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, c := range result.Content {
			b.WriteString(c.Text)
		}
		if result.IsError {
			return "", fmt.Errorf("%s", b.String())
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("no tool named %q", name)
}

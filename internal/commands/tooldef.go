package commands

import (
	"context"
	"fmt"

	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
)

// ToolDef adapts a Command into the same Tool{Name, Description,
// InputSchema} shape the MCP client exposes, plus a Go-native handler
// a model-agent runner can invoke directly without going through the
// text dispatcher.
type ToolDef struct {
	Tool    mcpmanager.Tool
	Handler func(ctx context.Context, sess Session, args map[string]any) (string, error)
}

// ToolCatalog exposes every Catalog() command as a ToolDef, so any LLM
// agent joined to a room sees the same command set as a human, without
// duplicating validation logic: the handler formats args back into a
// command line and calls Dispatch.
func ToolCatalog() []ToolDef {
	cmds := Catalog()
	out := make([]ToolDef, 0, len(cmds))
	for _, c := range cmds {
		c := c
		out = append(out, ToolDef{
			Tool: mcpmanager.Tool{
				Name:        c.Name,
				Description: c.Description,
				InputSchema: c.InputSchema,
			},
			Handler: func(ctx context.Context, sess Session, args map[string]any) (string, error) {
				return Dispatch(ctx, sess, "/"+c.Name+" "+flattenArgs(c, args))
			},
		})
	}
	return out
}

// flattenArgs renders a tool call's structured arguments back into the
// single-string form the slash-command dispatcher expects, using the
// first (and for every catalog command, only) schema property as the
// positional argument.
func flattenArgs(c Command, args map[string]any) string {
	if c.InputSchema == nil {
		return ""
	}
	props, _ := c.InputSchema["properties"].(map[string]any)
	for name := range props {
		if v, ok := args[name]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

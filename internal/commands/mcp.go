package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// cmdMCP implements `mcp [list|connect <name> <endpoint>|disconnect <name>|refresh <name>]`.
func cmdMCP(ctx context.Context, sess Session, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fields = []string{"list"}
	}
	switch fields[0] {
	case "list":
		statuses := sess.MCP().List()
		if len(statuses) == 0 {
			return "No MCP connections.", nil
		}
		var b strings.Builder
		for _, s := range statuses {
			fmt.Fprintf(&b, "%s (%s) state=%s tools=%d calls=%d\n", s.Name, s.Endpoint, s.State, s.ToolCount, s.CallCount)
		}
		return b.String(), nil
	case "connect":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: mcp connect <name> <endpoint>")
		}
		sess.MCP().Add(fields[1], fields[2])
		return fmt.Sprintf("Connecting to %s at %s.", fields[1], fields[2]), nil
	case "disconnect":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: mcp disconnect <name>")
		}
		sess.MCP().Remove(fields[1])
		return fmt.Sprintf("Disconnected %s.", fields[1]), nil
	case "refresh":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: mcp refresh <name>")
		}
		sess.MCP().RefreshTools(fields[1])
		return fmt.Sprintf("Refreshing tools for %s.", fields[1]), nil
	default:
		return "", fmt.Errorf("unknown mcp subcommand %q (want list|connect|disconnect|refresh)", fields[0])
	}
}

// cmdRun implements `run <tool> [json-args]`, calling the named tool
// through the MCP manager's control plane.
func cmdRun(ctx context.Context, sess Session, args string) (string, error) {
	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if fields[0] == "" {
		return "", fmt.Errorf("usage: run <tool> [json-args]")
	}
	toolName := fields[0]

	var toolArgs map[string]any
	if len(fields) == 2 && strings.TrimSpace(fields[1]) != "" {
		if err := json.Unmarshal([]byte(fields[1]), &toolArgs); err != nil {
			return "", fmt.Errorf("invalid json args: %w", err)
		}
	}

	result, serverName, err := sess.MCP().CallTool(ctx, toolName, toolArgs)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", toolName, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s/%s]", serverName, toolName)
	if result.IsError {
		b.WriteString(" (error)")
	}
	b.WriteString("\n")
	for _, c := range result.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

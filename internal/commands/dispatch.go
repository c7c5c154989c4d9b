package commands

import (
	"context"
	"fmt"
	"strings"
)

// Dispatch parses a slash-command line ("/name rest of args") and runs
// it against sess, enforcing the Kind-based preconditions spec.md
// §4.11 requires before the command's own Run executes.
func Dispatch(ctx context.Context, sess Session, line string) (string, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	name, args, _ := strings.Cut(line, " ")
	if name == "" {
		return "", fmt.Errorf("empty command")
	}

	cmd, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown command %q", name)
	}

	if cmd.Kind == Write || cmd.Kind == Navigation {
		switch cmd.Name {
		case "join", "create", "leave":
			// these manage their own joined-room precondition
		default:
			if _, _, ok := sess.CurrentRoom(); !ok {
				return "", fmt.Errorf("%q requires a joined room", cmd.Name)
			}
		}
	}

	return cmd.Run(ctx, sess, args)
}

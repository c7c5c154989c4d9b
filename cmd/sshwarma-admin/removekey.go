package main

import (
	"context"
	"fmt"

	"github.com/rakunlabs/sshwarma/internal/hostkey"
)

// RemoveKeyCmd removes one public key from whichever agent currently
// owns it, without touching the agent row itself.
type RemoveKeyCmd struct {
	Args struct {
		Key string `positional-arg-name:"key" required:"true"`
	} `positional-args:"true"`
}

func (c *RemoveKeyCmd) Execute(_ []string) error {
	canonical, err := hostkey.Canonicalize(c.Args.Key)
	if err != nil {
		return fmt.Errorf("canonicalize pubkey: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	agent, err := st.FindAgentByAuth(ctx, "pubkey", canonical)
	if err != nil {
		return fmt.Errorf("look up key: %w", err)
	}
	if agent == nil {
		return fmt.Errorf("no agent owns key %s", canonical)
	}

	if err := st.RemoveAgentAuth(ctx, agent.ID, "pubkey"); err != nil {
		return fmt.Errorf("remove key: %w", err)
	}

	fmt.Printf("removed key from agent %s (%s)\n", agent.Name, agent.ID)
	return nil
}

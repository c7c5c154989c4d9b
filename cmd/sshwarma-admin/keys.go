package main

import (
	"context"
	"fmt"
	"time"
)

// KeysCmd lists every credential stored for one agent.
type KeysCmd struct {
	Args struct {
		Handle string `positional-arg-name:"handle" required:"true"`
	} `positional-args:"true"`
}

func (c *KeysCmd) Execute(_ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	agent, err := st.GetAgentByName(ctx, c.Args.Handle)
	if err != nil {
		return fmt.Errorf("look up %q: %w", c.Args.Handle, err)
	}
	if agent == nil {
		return fmt.Errorf("no agent named %q", c.Args.Handle)
	}

	creds, err := st.ListAgentAuth(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}

	for _, cred := range creds {
		fmt.Printf("%s\t%s\t%s\n", cred.AuthKind, cred.AuthData, time.UnixMilli(cred.CreatedAt).Format(time.RFC3339))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
)

// RemoveCmd deletes an agent and every credential it owns.
type RemoveCmd struct {
	Args struct {
		Handle string `positional-arg-name:"handle" required:"true"`
	} `positional-args:"true"`
}

func (c *RemoveCmd) Execute(_ []string) error {
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

	if err := st.DeleteAgent(ctx, agent.ID); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}

	fmt.Printf("removed agent %s (%s)\n", agent.Name, agent.ID)
	return nil
}

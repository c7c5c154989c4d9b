package main

import (
	"context"
	"fmt"
)

// ListCmd prints every agent, one per line.
type ListCmd struct{}

func (c *ListCmd) Execute(_ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	agents, err := st.ListAgents(context.Background())
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	for _, a := range agents {
		fmt.Printf("%s\t%s\t%s\n", a.ID, a.Kind, a.Name)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rakunlabs/sshwarma/internal/hostkey"
)

// AddCmd creates a human agent with a public key, read from a file or
// given inline.
type AddCmd struct {
	Key  string `long:"key" description:"authorized_keys-format public key, inline"`
	Args struct {
		Handle     string `positional-arg-name:"handle" required:"true"`
		PubkeyFile string `positional-arg-name:"pubkey-file"`
	} `positional-args:"true"`
}

func (c *AddCmd) Execute(_ []string) error {
	raw := c.Key
	if raw == "" {
		if c.Args.PubkeyFile == "" {
			return fmt.Errorf("either a pubkey-file argument or --key is required")
		}
		data, err := os.ReadFile(c.Args.PubkeyFile)
		if err != nil {
			return fmt.Errorf("read pubkey file: %w", err)
		}
		raw = string(data)
	}

	canonical, err := hostkey.Canonicalize(raw)
	if err != nil {
		return fmt.Errorf("canonicalize pubkey: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	agent, err := st.EnsureHumanByPubkey(context.Background(), c.Args.Handle, canonical)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	fmt.Printf("agent %s (%s) now owns key %s\n", agent.Name, agent.ID, canonical)
	return nil
}

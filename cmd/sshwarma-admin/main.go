// Command sshwarma-admin manages agents and their SSH public keys
// directly against the sqlite store, for operators who aren't running
// open registration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/rakunlabs/sshwarma/internal/paths"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// Options is the root command grouping every admin sub-command.
type Options struct {
	Add       *AddCmd       `command:"add" description:"Create a human agent with a public key"`
	Remove    *RemoveCmd    `command:"remove" description:"Delete an agent and all its credentials"`
	RemoveKey *RemoveKeyCmd `command:"remove-key" description:"Remove one public key from whichever agent owns it"`
	List      *ListCmd      `command:"list" description:"List every agent"`
	Keys      *KeysCmd      `command:"keys" description:"List an agent's stored credentials"`
}

var store *sqlite.Store

func main() {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// openStore lazily opens the shared sqlite store so sub-commands that
// never run (e.g. --help) never pay for it.
func openStore() (*sqlite.Store, error) {
	if store != nil {
		return store, nil
	}
	s, err := sqlite.Open(context.Background(), paths.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", paths.DBPath(), err)
	}
	store = s
	return store, nil
}

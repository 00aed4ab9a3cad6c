package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const addLocalShortHelp = `Pin a dependency to a local directory`
const addLocalLongHelp = `
Registers path as the source for name and re-resolves, so a root
dependency on an ordinary version interval is satisfied by the local
checkout instead of anything fetched from a supplier (§4.1 "path
overrides interval").
`

type addLocalCommand struct{}

func (cmd *addLocalCommand) Name() string      { return "add-local" }
func (cmd *addLocalCommand) Args() string      { return "<name> <path>" }
func (cmd *addLocalCommand) ShortHelp() string { return addLocalShortHelp }
func (cmd *addLocalCommand) LongHelp() string  { return addLocalLongHelp }
func (cmd *addLocalCommand) Hidden() bool      { return false }

func (cmd *addLocalCommand) Register(fs *flag.FlagSet) {}

func (cmd *addLocalCommand) Run(a *app, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "dub: add-local takes exactly <name> <path>")
		return 1
	}
	name := args[0]
	dir, err := filepath.Abs(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return 1
	}

	ctx := context.Background()
	pl, err := a.run(ctx, "debug", resolveOpts{addPathOverrides: map[string]string{name: dir}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	if pl.delta == nil || pl.delta.IsEmpty() {
		fmt.Fprintf(os.Stdout, "%s was already pinned to %s\n", name, dir)
		return 0
	}
	fmt.Fprintf(os.Stdout, "%s: {path: %q}\n", name, dir)
	return 0
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const upgradeShortHelp = `Upgrade dependencies against their constraints`
const upgradeLongHelp = `
Re-runs C4 ignoring the prior selection for the named packages (or every
package, with no arguments), writing whatever new selection results.
`

type upgradeCommand struct {
	prerelease bool
}

func (cmd *upgradeCommand) Name() string      { return "upgrade" }
func (cmd *upgradeCommand) Args() string      { return "[package...]" }
func (cmd *upgradeCommand) ShortHelp() string { return upgradeShortHelp }
func (cmd *upgradeCommand) LongHelp() string  { return upgradeLongHelp }
func (cmd *upgradeCommand) Hidden() bool      { return false }

func (cmd *upgradeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.prerelease, "prerelease", false, "allow the named packages to resolve to a prerelease version")
}

func (cmd *upgradeCommand) Run(a *app, args []string) int {
	ctx := context.Background()

	opts := resolveOpts{toChange: args, changeAll: len(args) == 0}
	if cmd.prerelease {
		opts.allowPrereleaseFor = args
	}

	pl, err := a.run(ctx, "debug", opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	if pl.delta == nil || pl.delta.IsEmpty() {
		fmt.Fprintln(os.Stdout, "no changes")
		return 0
	}
	for _, e := range pl.delta.Added {
		fmt.Fprintf(os.Stdout, "added %s\n", e.Name)
	}
	for _, c := range pl.delta.Changed {
		fmt.Fprintf(os.Stdout, "upgraded %s\n", c.Name)
	}
	for _, e := range pl.delta.Removed {
		fmt.Fprintf(os.Stdout, "removed %s\n", e.Name)
	}
	return 0
}

package main

import (
	"flag"
	"fmt"
	"os"
)

const removeShortHelp = `Remove a fetched package instance from the cache`
const removeLongHelp = `
Deletes name@version from the user or system package cache. It does
not touch the project's selection; run "upgrade" afterward if the
removed instance was currently selected.
`

type removeCommand struct {
	system bool
}

func (cmd *removeCommand) Name() string      { return "remove" }
func (cmd *removeCommand) Args() string      { return "<name>@<version>" }
func (cmd *removeCommand) ShortHelp() string { return removeShortHelp }
func (cmd *removeCommand) LongHelp() string  { return removeLongHelp }
func (cmd *removeCommand) Hidden() bool      { return false }

func (cmd *removeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.system, "system", false, "remove from the system-wide cache instead of the user cache")
}

func (cmd *removeCommand) Run(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "dub: remove takes exactly one <name>@<version> argument")
		return 1
	}

	name, ver, err := parseNameVersion(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return 1
	}

	location := a.cfg.UserCacheDir
	if cmd.system {
		location = a.cfg.SystemCacheDir
	}

	if err := a.pm.Remove(name, ver, location); err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}
	fmt.Fprintf(os.Stdout, "removed %s@%s\n", name, ver)
	return 0
}

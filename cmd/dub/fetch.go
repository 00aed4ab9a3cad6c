package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dlang/dub-sub005/pkg/version"
)

const fetchShortHelp = `Download a package into the local cache`
const fetchLongHelp = `
Fetches name@version from the configured registry supplier into the
user or system package cache, without touching the project's selection.
`

type fetchCommand struct {
	system bool
}

func (cmd *fetchCommand) Name() string      { return "fetch" }
func (cmd *fetchCommand) Args() string      { return "<name>@<version>" }
func (cmd *fetchCommand) ShortHelp() string { return fetchShortHelp }
func (cmd *fetchCommand) LongHelp() string  { return fetchLongHelp }
func (cmd *fetchCommand) Hidden() bool      { return false }

func (cmd *fetchCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.system, "system", false, "install into the system-wide cache instead of the user cache")
}

func (cmd *fetchCommand) Run(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "dub: fetch takes exactly one <name>@<version> argument")
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

	if err := a.pm.Fetch(context.Background(), name, ver, a.supplier, location); err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}
	fmt.Fprintf(os.Stdout, "fetched %s@%s\n", name, ver)
	return 0
}

// parseNameVersion splits "name@version" into its parts. The version is
// required; a spec without one is an error.
func parseNameVersion(spec string) (string, version.Version, error) {
	name, verStr, hasVer := strings.Cut(spec, "@")
	if !hasVer {
		return "", nil, fmt.Errorf("%q must specify a version as name@version", spec)
	}
	v, err := version.NewRelease(verStr)
	if err != nil {
		return "", nil, fmt.Errorf("parsing version %q: %w", verStr, err)
	}
	return name, v, nil
}

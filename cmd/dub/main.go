// Command dub is the CLI entry point: a thin command-table dispatcher
// wiring together the core packages (pkg/recipe, pkg/pkgmanager,
// pkg/solver, pkg/selection, pkg/project, pkg/target, pkg/cache,
// pkg/generator) into the run/build/test/describe/upgrade/fetch/
// add-local/remove operations of §2's control flow. Grounded on the
// teacher's main.go: a command interface, a commands table, one
// flag.FlagSet per command, and resetUsage for consistent help text.
//
// The CLI itself sits outside the core's tested scope (§1 "command-line
// parsing and help text... explicitly out of scope"); it exists so the
// core packages have somewhere to be driven from end to end.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

var verbose = flag.Bool("v", false, "enable verbose logging")

// command mirrors the teacher's command interface (main.go), generalized
// with an exit-code-bearing Run so §6's exit code table can be honored
// without every command reaching for os.Exit itself.
type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Hidden() bool
	Run(a *app, args []string) int
}

func main() {
	commands := []command{
		&buildCommand{},
		&runCommand{},
		&testCommand{},
		&describeCommand{},
		&upgradeCommand{},
		&fetchCommand{},
		&addLocalCommand{},
		&removeCommand{},
	}

	usage := func() {
		fmt.Fprintln(os.Stderr, "Usage: dub <command>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr)
		w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
		for _, c := range commands {
			if !c.Hidden() {
				fmt.Fprintf(w, "\t%s\t%s\n", c.Name(), c.ShortHelp())
			}
		}
		w.Flush()
		fmt.Fprintln(os.Stderr)
	}

	if len(os.Args) <= 1 || strings.ToLower(os.Args[1]) == "-h" || strings.Contains(strings.ToLower(os.Args[1]), "help") {
		usage()
		os.Exit(1)
	}

	for _, c := range commands {
		if c.Name() != os.Args[1] {
			continue
		}

		fs := flag.NewFlagSet(c.Name(), flag.ExitOnError)
		fs.BoolVar(verbose, "v", false, "enable verbose logging")
		c.Register(fs)
		resetUsage(fs, c.Name(), c.Args(), c.LongHelp())

		if err := fs.Parse(os.Args[2:]); err != nil {
			fs.Usage()
			os.Exit(1)
		}

		a, err := newApp(*verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dub: %v\n", err)
			os.Exit(2)
		}

		os.Exit(c.Run(a, fs.Args()))
	}

	fmt.Fprintf(os.Stderr, "%s: no such command\n", os.Args[1])
	usage()
	os.Exit(1)
}

func resetUsage(fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		defValue := f.DefValue
		if defValue == "" {
			defValue = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, defValue)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dub %s %s\n", name, args)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, strings.TrimSpace(longHelp))
		fmt.Fprintln(os.Stderr)
		if hasFlags {
			fmt.Fprintln(os.Stderr, "Flags:")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, flagBlock.String())
		}
	}
}

// Package dlog is a minimal logger wrapping an io.Writer, in the same
// shape as the teacher's log/logger.go, extended with verbosity tiers so
// the resolver's trace channel (§4.4) and the build orchestrator's
// diagnostic surfacing (§4.8) can share one logging dependency instead of
// each inventing its own.
package dlog

import (
	"fmt"
	"io"
)

// Level is a verbosity tier.
type Level uint8

const (
	Quiet Level = iota
	Normal
	Verbose
)

// Logger is a minimal wrapper around an io.Writer, gated by Level.
type Logger struct {
	io.Writer
	Level Level
}

// New returns a new Logger at Normal verbosity.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w, Level: Normal}
}

// Logln logs a line at Normal verbosity.
func (l *Logger) Logln(args ...interface{}) {
	if l.Level < Normal {
		return
	}
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string at Normal verbosity.
func (l *Logger) Logf(f string, args ...interface{}) {
	if l.Level < Normal {
		return
	}
	fmt.Fprintf(l, f, args...)
}

// Tracef logs a formatted string only at Verbose, for the resolver's
// backtracking trace (§4.4) and the generator's per-target diagnostics.
func (l *Logger) Tracef(f string, args ...interface{}) {
	if l.Level < Verbose {
		return
	}
	fmt.Fprintf(l, "dub: "+f+"\n", args...)
}

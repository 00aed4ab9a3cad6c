package iface

import (
	"context"
	"time"

	"github.com/sdboyer/constext"
)

// WithCompileTimeout combines the invocation-wide cancellation token
// parent with a per-target compile timeout, so a target's compile
// invocation aborts on whichever fires first (§5 "Cancellation &
// timeouts"). Cons's child obeys either parent's cancellation, which is
// exactly the "abort pending operations between atomic units" contract
// spec §5 asks for at the Compiler.Invoke boundary.
func WithCompileTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	deadline, cancelDeadline := context.WithTimeout(context.Background(), timeout)
	combined, cancelCombined := constext.Cons(parent, deadline)
	return combined, func() {
		cancelDeadline()
		cancelCombined()
	}
}

package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/termie/go-shutil"
)

// StageOutput copies the cached artifact at artifactPath into the
// package's target directory under outputFileName, for a requested output
// (§4.8 "the final executable is staged into the package's target
// directory"). The cache entry is left untouched so later lookups still
// hit it.
func StageOutput(artifactPath, targetDir, outputFileName string) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", &dubfail.IOError{Op: "mkdir", Path: targetDir, Err: err}
	}
	dest := filepath.Join(targetDir, outputFileName)
	if _, err := shutil.Copy(artifactPath, dest, false); err != nil {
		return "", &dubfail.IOError{Op: "stage output", Path: dest, Err: err}
	}
	if err := os.Chmod(dest, 0o755); err != nil {
		return "", &dubfail.IOError{Op: "chmod", Path: dest, Err: err}
	}
	return dest, nil
}

// Run executes a staged executable with args in workDir, streaming its
// output to out (§4.8 "executed with the configured working directory
// and passed-through arguments"). Unlike Compiler.Invoke, this isn't a
// compiler invocation: it runs the user's own freshly built program, so
// the core's "never shell out to the compiler" boundary doesn't apply
// here. ctx's cancellation kills the child, per §5.
func Run(ctx context.Context, path string, args []string, workDir string, out iface.OutputSink) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = workDir
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.Canceled {
		return &dubfail.Cancelled{During: "run of " + path}
	}
	return &dubfail.IOError{Op: "run", Path: path, Err: err}
}

// Package cli implements the quicktypofix command line: one-shot file correction, the interactive editor, API key management, and configuration display.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

// Version is the quicktypofix version. It is a var (not a const) so build tooling can override it (for example via `-ldflags "-X .../internal/cli.Version=1.2.3"`).
var Version = "0.3.0"

// In/Out/Err override standard I/O. If nil, defaults are used. Overriding is useful for testing.
type RunOptions struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// usageError marks errors caused by malformed arguments or flags.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// Run runs the CLI with args (typically you'd use os.Args).
//
// It returns a recommended exit code (0, 1, or 2) and an error, if any:
//   - 0 -> err == nil
//   - 1 -> err != nil, but the structure of args is sound (flags are correct, etc).
//   - 2 -> err != nil, args parse error or misuse of flags, etc.
//
// Note that in cases of errors, Run has already displayed an error message to opts.Err || Stderr. Callers may use os.Exit with the exit code.
func Run(args []string, opts *RunOptions) (int, error) {
	argv := args
	if len(argv) > 0 {
		argv = argv[1:]
	}

	std := stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}
	if opts != nil {
		if opts.In != nil {
			std.in = opts.In
		}
		if opts.Out != nil {
			std.out = opts.Out
		}
		if opts.Err != nil {
			std.err = opts.Err
		}
	}

	root := newRootCommand(std)
	root.SetArgs(argv)
	root.SetIn(std.in)
	root.SetOut(std.out)
	root.SetErr(std.err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0, nil
	}

	code := 1
	if isUsageError(err) {
		code = 2
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "command failed"
	}
	fmt.Fprintf(std.err, "Error: %s\n", msg)
	if code == 2 {
		fmt.Fprintf(std.err, "Run '%s --help' for usage.\n", commandPath(root, argv))
	}
	return code, errors.New(msg)
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports unknown commands and flags as plain errors.
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag")
}

// commandPath returns the path of the deepest command named in argv, or the root's.
func commandPath(root *cobra.Command, argv []string) string {
	if cmd, _, err := root.Find(argv); err == nil && cmd != nil {
		return cmd.CommandPath()
	}
	return root.CommandPath()
}

type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

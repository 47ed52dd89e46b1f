// Command sanctionctl runs the sanction engine: the HTTP server, the sweep
// entry point for cron and one-shot administrative commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sanctioncore/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

var exitFunc = os.Exit

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	exitFunc(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	root := newRootCmd(&env{stdout: stdout, stderr: stderr, getenv: getenv})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps caller mistakes (bad input, missing ids, state conflicts) to 2
// and everything else to 1.
func exitCode(err error) int {
	var ee *exitErr
	switch {
	case errors.As(err, &ee):
		return ee.code
	case domain.IsValidation(err), domain.IsConflict(err), domain.IsNotFound(err):
		return exitUsage
	default:
		return exitFailure
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "sanctionctl",
		Short:         "Assign, escalate and resolve sanctions",
		Long:          "sanctionctl manages sanction tasks: it serves the HTTP API, runs the overdue sweep and performs single lifecycle operations.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return codeError(exitUsage, "%v", err)
	})
	root.AddCommand(
		newServeCmd(e),
		newSweepCmd(e),
		newCreateCmd(e),
		newAssignCmd(e),
		newTransitionCmd(e, "complete", "Mark a sanction done", func(a *app) transitionFunc { return a.svc.Complete }),
		newTransitionCmd(e, "escalate", "Escalate a sanction by hand", func(a *app) transitionFunc { return a.svc.EscalateOne }),
		newTransitionCmd(e, "expire", "Retire a sanction without completing it", func(a *app) transitionFunc { return a.svc.MarkExpired }),
		newDeleteCmd(e),
		newCompleteAllCmd(e),
		newListCmd(e),
		newSummaryCmd(e),
		newTemplatesCmd(e),
	)
	return root
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return codeError(exitUsage, "%s expects %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/go-ports/terminus/internal/ui"
	"github.com/go-ports/terminus/internal/workflow"
)

// Await waits for wf to settle, showing a spinner labelled label on a
// terminal, and reports the outcome. Success prints the workflow description
// with a check mark to stdout; failure prints the reason with a cross to
// stderr and returns the error.
func Await(cmd *cobra.Command, wf *workflow.Workflow, label string) error {
	errOut := cmd.ErrOrStderr()
	stop := startSpinner(errOut, label)
	state, err := wf.Wait(cmd.Context())
	stop()

	var failed *workflow.FailedError
	switch {
	case errors.As(err, &failed):
		reason := failed.Reason
		if reason == "" {
			reason = "workflow failed"
		}
		fmt.Fprintf(errOut, "%s %s\n", ui.Error.Sprint("✗"), reason)
		return err
	case err != nil:
		return err
	}

	desc := state.Description
	if desc == "" {
		desc = label
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Success.Sprint("✓"), desc)
	return nil
}

func startSpinner(w io.Writer, label string) (stop func()) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + label
	s.Start()
	return s.Stop
}

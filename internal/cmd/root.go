// Package cmd holds the root cobra command for cuenv.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/signals"
)

// RunWithArgs runs cuenv with the specified arguments. args should not
// include the binary name.
func RunWithArgs(args []string, cuenvVersion string) int {
	signalWatcher := signals.NewWatcher()
	helper := cmdutil.NewHelper(cuenvVersion)
	root := getCmd(helper)
	defer helper.Cleanup(root.Flags())
	root.SetArgs(args)

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		signalWatcher.Close()
		return exitCodeFor(execErr)
	case <-signalWatcher.Done():
		return 1
	}
}

// exitCodeFor maps a command error to a process exit code: a *cmdutil.Error
// or *process.ChildExit carries an explicit code, anything else is a
// generic internal failure.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *cmdutil.Error
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	var childExit *process.ChildExit
	if errors.As(err, &childExit) {
		return childExit.ExitCode
	}
	return 1
}

// getCmd builds the root cobra command and wires every subcommand.
func getCmd(helper *cmdutil.Helper) *cobra.Command {
	root := &cobra.Command{
		Use:              "cuenv",
		Short:            "Per-directory environments and tasks backed by CUE",
		Version:          helper.CuenvVersion,
		TraverseChildren: true,
		SilenceUsage:     true,
		SilenceErrors:    true,
	}
	helper.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newExportCmd(helper),
		newEnvCmd(helper),
		newAllowCmd(helper),
		newDenyCmd(helper),
		newTaskCmd(helper),
		newExecCmd(helper),
		newCiCmd(helper),
	)
	return root
}

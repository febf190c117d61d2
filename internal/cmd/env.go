package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/approval"
	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/hooks"
	"github.com/cuenv/cuenv/internal/project"
	"github.com/cuenv/cuenv/internal/shellexport"
	"github.com/cuenv/cuenv/internal/statestore"
)

// newEnvCmd groups the `env` subcommands: load, status, check, inspect.
func newEnvCmd(helper *cmdutil.Helper) *cobra.Command {
	cmd := &cobra.Command{Use: "env", Short: "Inspect and manage the directory-scoped environment"}
	cmd.AddCommand(newEnvLoadCmd(helper), newEnvStatusCmd(helper), newEnvCheckCmd(helper), newEnvInspectCmd(helper))
	return cmd
}

func newEnvLoadCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Evaluate the directory's config and start its onEnter hooks if approved",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}

			p, err := loadProject(cmd.Context(), base.Evaluator(), dir, flags.pkg)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			identity, err := computeIdentity(dir, p)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			instanceHash, err := statestore.InstanceHash(identity.DirKey, identity.ConfigHash)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			store, err := base.StateStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			if existing, err := store.LoadState(instanceHash); err == nil && existing != nil && existing.Status == statestore.StatusRunning {
				base.LogInfo(fmt.Sprintf("cuenv: already running for %s", dir))
				return nil
			}

			approvalStore, err := base.ApprovalStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			check, err := approvalStore.Check(identity.DirKey, identity.ApprovalHash)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			if check.Status != approval.Approved {
				base.LogInfo(fmt.Sprintf("cuenv: %d hook(s) require approval; run `cuenv allow`", len(p.Hooks.OnEnter)))
				return nil
			}

			hookList := hooks.GatherHooks(nil, project.HookSlice(p.Hooks.OnEnter))
			sv := hooks.NewSupervisor(store, base.ProcessManager(), base.Logger)
			baseEnv := env.GetEnvMap()
			baseEnv.Union(env.EnvironmentVariableMap(p.Env))

			runHooks := func(ctx context.Context) error {
				return sv.Run(ctx, dir, identity.DirKey, instanceHash, identity.ConfigHash, hookList, baseEnv)
			}

			if os.Getenv("CUENV_FOREGROUND_HOOKS") != "" {
				if err := runHooks(cmd.Context()); err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
			} else {
				go func() { _ = runHooks(context.Background()) }()
			}

			base.LogInfo(fmt.Sprintf("cuenv: loading %s", dir))
			return nil
		},
	}
	addPathPackageFlags(cmd.Flags(), &flags)
	return cmd
}

func newEnvStatusCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var wait bool
	var timeoutSeconds int
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the current hook-execution status for a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}
			p, err := loadProject(cmd.Context(), base.Evaluator(), dir, flags.pkg)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			identity, err := computeIdentity(dir, p)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			instanceHash, err := statestore.InstanceHash(identity.DirKey, identity.ConfigHash)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			store, err := base.StateStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
			var state *statestore.State
			for {
				state, err = store.LoadStateSync(instanceHash)
				if err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				if !wait || state == nil || state.Status.IsTerminal() || time.Now().After(deadline) {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}

			cmd.Println(renderStatus(format, state))
			return nil
		},
	}
	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the hook run reaches a terminal state")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "Max seconds to wait with --wait")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, short, or starship")
	return cmd
}

func renderStatus(format string, state *statestore.State) string {
	if state == nil {
		switch format {
		case "starship":
			return ""
		case "short":
			return "none"
		default:
			return "cuenv: no active environment"
		}
	}
	switch format {
	case "starship":
		if state.Status == statestore.StatusRunning {
			return fmt.Sprintf("cuenv(%d/%d)", state.CompletedHooks, state.TotalHooks)
		}
		return ""
	case "short":
		return string(state.Status)
	default:
		return fmt.Sprintf("cuenv: %s (%d/%d hooks) in %s", state.Status, state.CompletedHooks, state.TotalHooks, state.Dir)
	}
}

func newEnvCheckCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var shell string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Emit env exports once a directory's hooks have completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return nil
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return nil
			}
			if !isCuenvDir(dir) {
				return nil
			}

			p, err := loadProject(cmd.Context(), base.Evaluator(), dir, flags.pkg)
			if err != nil {
				return nil
			}
			identity, err := computeIdentity(dir, p)
			if err != nil {
				return nil
			}
			instanceHash, err := statestore.InstanceHash(identity.DirKey, identity.ConfigHash)
			if err != nil {
				return nil
			}
			store, err := base.StateStore()
			if err != nil {
				return nil
			}
			state, err := store.LoadStateSync(instanceHash)
			if err != nil || state == nil || state.Status != statestore.StatusCompleted {
				return nil
			}

			fmtr := shellexport.NewFormatter(shellexport.Shell(shell))
			for name, value := range state.EnvironmentVars {
				fmt.Fprint(cmd.OutOrStdout(), fmtr.Export(name, value))
			}
			return nil
		},
	}
	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().StringVar(&shell, "shell", string(shellexport.Bash), "Target shell: bash, zsh, fish, or powershell")
	return cmd
}

func newEnvInspectCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the captured environment and previous snapshot for a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}
			p, err := loadProject(cmd.Context(), base.Evaluator(), dir, flags.pkg)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			identity, err := computeIdentity(dir, p)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			instanceHash, err := statestore.InstanceHash(identity.DirKey, identity.ConfigHash)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			store, err := base.StateStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			state, err := store.LoadStateSync(instanceHash)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			if state == nil {
				cmd.Println("cuenv: no captured state for this directory")
				return nil
			}

			cmd.Printf("status: %s\n", state.Status)
			cmd.Println("captured environment:")
			for name, value := range state.EnvironmentVars {
				cmd.Printf("  %s=%s\n", name, value)
			}
			cmd.Println("previous environment:")
			for name, value := range state.PreviousEnv {
				cmd.Printf("  %s=%s\n", name, value)
			}
			return nil
		},
	}
	addPathPackageFlags(cmd.Flags(), &flags)
	return cmd
}

package cmd

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/statestore"
)

func newExecCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags

	cmd := &cobra.Command{
		Use:                "exec -- CMD [ARGS...]",
		Short:              "Run an arbitrary command under the directory's resolved environment",
		DisableFlagParsing: false,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}

			resolved := env.GetEnvMap()
			p, perr := loadProject(cmd.Context(), base.Evaluator(), dir, flags.pkg)
			if perr == nil {
				resolved.Union(env.EnvironmentVariableMap(p.Env))
				if identity, ierr := computeIdentity(dir, p); ierr == nil {
					if instanceHash, hErr := statestore.InstanceHash(identity.DirKey, identity.ConfigHash); hErr == nil {
						if store, sErr := base.StateStore(); sErr == nil {
							if state, lErr := store.LoadStateSync(instanceHash); lErr == nil && state != nil && state.Status == statestore.StatusCompleted {
								resolved.Union(env.EnvironmentVariableMap(state.EnvironmentVars))
							}
						}
					}
				}
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Dir = dir
			child.Env = resolved.ToEnviron()
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr

			if err := base.ProcessManager().Exec(child); err != nil {
				return err
			}
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().SetInterspersed(false)
	return cmd
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/shellexport"
	"github.com/cuenv/cuenv/internal/turbopath"
)

// newExportCmd builds `cuenv export`: the hot shell-prompt path. It always
// exits 0 and emits at worst a no-op, since a prompt hook can never be
// allowed to block or error the user's shell.
func newExportCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var shell string

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Emit shell code reflecting the current directory's loaded environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtr := shellexport.NewFormatter(shellexport.Shell(shell))

			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				fmt.Fprint(cmd.OutOrStdout(), fmtr.Noop())
				return nil
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				fmt.Fprint(cmd.OutOrStdout(), fmtr.Noop())
				return nil
			}
			dirKey, err := fingerprint.DirectoryKey(turbopath.FromUpstream(dir))
			if err != nil {
				fmt.Fprint(cmd.OutOrStdout(), fmtr.Noop())
				return nil
			}
			store, err := base.StateStore()
			if err != nil {
				fmt.Fprint(cmd.OutOrStdout(), fmtr.Noop())
				return nil
			}

			decision := shellexport.Decide(store, dirKey, os.Getenv("CUENV_LOADED_DIR"), os.Getenv("CUENV_PENDING_APPROVAL_DIR"), dir)
			fmt.Fprint(cmd.OutOrStdout(), shellexport.Render(fmtr, decision))
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().StringVar(&shell, "shell", string(shellexport.Bash), "Target shell: bash, zsh, fish, or powershell")
	return cmd
}

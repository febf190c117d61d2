package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/turbopath"
)

func newDenyCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags

	cmd := &cobra.Command{
		Use:   "deny",
		Short: "Revoke a directory's hook-set approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}
			dirKey, err := fingerprint.DirectoryKey(turbopath.FromUpstream(dir))
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			approvalStore, err := base.ApprovalStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			revoked, err := approvalStore.Revoke(dirKey)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			if revoked {
				base.LogInfo(fmt.Sprintf("cuenv: revoked approval for %s", dir))
			} else {
				base.LogInfo(fmt.Sprintf("cuenv: %s was not approved", dir))
			}
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
)

func newAllowCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var note string
	var yes bool

	cmd := &cobra.Command{
		Use:   "allow",
		Short: "Approve a directory's current hook set to run without prompting",
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

			hookCount := len(p.Hooks.OnEnter) + len(p.Hooks.OnExit) + len(p.Hooks.PrePush)
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Approve %d hook(s) declared by %s?", hookCount, dir),
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				if !confirmed {
					return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("approval aborted")}
				}
			}

			approvalStore, err := base.ApprovalStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			if err := approvalStore.Approve(identity.DirKey, dir, identity.ApprovalHash, note); err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			base.LogInfo(fmt.Sprintf("cuenv: approved %s", dir))
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().StringVar(&note, "note", "", "Optional note recorded with the approval")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}

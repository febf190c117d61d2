package cmd

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/colorcache"
	"github.com/cuenv/cuenv/internal/engine"
	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/project"
	"github.com/cuenv/cuenv/internal/taskindex"
)

func newTaskCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var labels []string

	cmd := &cobra.Command{
		Use:   "task [NAME]",
		Short: "Run one or more declared tasks through the cached DAG executor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if name != "" && len(labels) > 0 {
				return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("task: NAME and --label are mutually exclusive")}
			}

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

			flat := project.Flatten(p.Tasks)
			idx, err := taskindex.Build(flat.Raw)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			var nodes []engine.Node
			switch {
			case name != "":
				resolved, err := idx.Resolve(name)
				if err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				nodes = append(nodes, project.ToEngineNode(resolved, flat.Tasks))
			case len(labels) > 0:
				names := project.TasksWithLabels(flat, labels)
				if len(names) == 0 {
					return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("task: no task matches labels %v", labels)}
				}
				sort.Strings(names)
				for _, n := range names {
					resolved, err := idx.Resolve(n)
					if err != nil {
						return &cmdutil.Error{ExitCode: 1, Err: err}
					}
					nodes = append(nodes, project.ToEngineNode(resolved, flat.Tasks))
				}
			default:
				return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("task: specify NAME or --label")}
			}

			cacheStore, err := base.CacheStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			baseEnv := env.GetEnvMap()
			baseEnv.Union(env.EnvironmentVariableMap(p.Env))

			runner := engine.NewRunner(engine.RunnerConfig{
				ProjectRoot:  dir,
				BaseEnv:      baseEnv,
				CuenvVersion: base.CuenvVersion,
				Platform:     runtime.GOOS,
			}, cacheStore, base.ProcessManager(), base.Logger)

			results, err := runner.Execute(cmd.Context(), nodes)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			colors := colorcache.New()
			exitCode := 0
			for _, r := range results {
				prefix := colors.PrefixWithColor(r.Name, r.Name)
				if r.CacheHit {
					cmd.Printf("%scached\n", prefix)
				} else {
					cmd.Printf("%sexit %d (%s)\n", prefix, r.ExitCode, r.Duration)
				}
				if r.ExitCode != 0 && exitCode == 0 {
					exitCode = r.ExitCode
				}
			}
			if exitCode != 0 {
				return &cmdutil.Error{ExitCode: exitCode, Err: fmt.Errorf("task: one or more tasks failed")}
			}
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().StringArrayVar(&labels, "label", nil, "Select tasks by label (AND-combined when repeated)")
	return cmd
}

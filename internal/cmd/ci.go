package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/affected"
	"github.com/cuenv/cuenv/internal/cmdutil"
	"github.com/cuenv/cuenv/internal/colorcache"
	"github.com/cuenv/cuenv/internal/engine"
	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/evaluator"
	"github.com/cuenv/cuenv/internal/project"
	"github.com/cuenv/cuenv/internal/scm"
	"github.com/cuenv/cuenv/internal/taskindex"
)

func newCiCmd(helper *cmdutil.Helper) *cobra.Command {
	var flags pathPackageFlags
	var dryRun bool
	var pipeline string
	var generate string

	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Run the affected pipeline for changed files, or emit a CI workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generate != "" {
				return runCiGenerate(cmd, generate, pipeline)
			}

			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			dir, err := resolveDir(base.Cwd, flags.path)
			if err != nil {
				return err
			}

			git, err := scm.FromWorkingDir(dir)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			changedFiles, err := git.ChangedFiles("")
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			eval, err := base.Evaluator().EvaluateModule(cmd.Context(), git.RepoRoot(), flags.pkg, evaluator.EvaluateOptions{Recursive: true})
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}

			// relDir locates the current directory's project within the
			// evaluation by the same repo-root-relative path changedFiles
			// is expressed in, so ToAffectedConfig's Root lines up with
			// ComputeAffectedTasks' own prefix matching.
			relDir, err := filepath.Rel(git.RepoRoot(), dir)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			relDir = filepath.ToSlash(relDir)

			allProjects := map[string]affected.ProjectConfig{}
			var currentCfg affected.ProjectConfig
			var currentProject project.Project
			haveCurrent := false
			for _, relPath := range eval.Projects {
				p, err := evaluator.Deserialize[project.Project](eval, relPath)
				if err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				cfg, err := project.ToAffectedConfig(relPath, p)
				if err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				allProjects[p.Name] = cfg
				if relPath == relDir {
					currentCfg = cfg
					currentProject = p
					haveCurrent = true
				}
			}
			if !haveCurrent {
				return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("ci: no project evaluated at %q", relDir)}
			}

			pipelineTasks := pipelineTaskNames(currentProject, pipeline)
			affectedNames := affected.ComputeAffectedTasks(changedFiles, pipelineTasks, currentCfg, allProjects)

			if len(affectedNames) == 0 {
				cmd.Println("cuenv: no affected tasks")
				return nil
			}
			cmd.Printf("cuenv: affected tasks: %v\n", affectedNames)
			if dryRun {
				return nil
			}

			flat := project.Flatten(currentProject.Tasks)
			idx, err := taskindex.Build(flat.Raw)
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			var nodes []engine.Node
			for _, name := range affectedNames {
				resolved, err := idx.Resolve(name)
				if err != nil {
					return &cmdutil.Error{ExitCode: 1, Err: err}
				}
				nodes = append(nodes, project.ToEngineNode(resolved, flat.Tasks))
			}

			cacheStore, err := base.CacheStore()
			if err != nil {
				return &cmdutil.Error{ExitCode: 1, Err: err}
			}
			baseEnv := env.GetEnvMap()
			baseEnv.Union(env.EnvironmentVariableMap(currentProject.Env))
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
			for _, r := range results {
				cmd.Printf("%sexit %d\n", colors.PrefixWithColor(r.Name, r.Name), r.ExitCode)
				if r.ExitCode != 0 {
					return &cmdutil.Error{ExitCode: r.ExitCode, Err: fmt.Errorf("ci: %s failed", r.Name)}
				}
			}
			return nil
		},
	}

	addPathPackageFlags(cmd.Flags(), &flags)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print affected tasks without running them")
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Top-level task tree entry whose leaves define the candidate task list")
	cmd.Flags().StringVar(&generate, "generate", "", "Emit a CI workflow template instead of running (only \"github\" is supported)")
	return cmd
}

// pipelineTaskNames returns the candidate task list ComputeAffectedTasks
// filters down: every leaf under the named pipeline entry (sorted), or
// every leaf in the project when pipeline is empty.
func pipelineTaskNames(p project.Project, pipeline string) []string {
	tree := p.Tasks
	if pipeline != "" {
		if node, ok := p.Tasks[pipeline]; ok {
			tree = map[string]project.TaskNode{pipeline: node}
		}
	}
	flat := project.Flatten(tree)
	names := make([]string, 0, len(flat.Tasks))
	for name := range flat.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runCiGenerate(cmd *cobra.Command, provider, pipeline string) error {
	if provider != "github" {
		return &cmdutil.Error{ExitCode: 1, Err: fmt.Errorf("ci --generate: unsupported provider %q (only \"github\" is supported)", provider)}
	}
	pipelineArg := ""
	if pipeline != "" {
		pipelineArg = " --pipeline " + pipeline
	}
	cmd.Println(githubWorkflowTemplate(pipelineArg))
	return nil
}

func githubWorkflowTemplate(pipelineArg string) string {
	return fmt.Sprintf(`name: cuenv
on:
  pull_request:
  push:
    branches: [main]
jobs:
  ci:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0
      - run: cuenv ci%s
`, pipelineArg)
}

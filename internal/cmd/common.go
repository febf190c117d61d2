package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/cuenv/cuenv/internal/evaluator"
	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/project"
	"github.com/cuenv/cuenv/internal/turbopath"
)

// pathPackageFlags is the --path/--package pair every subcommand in spec
// §6's table accepts.
type pathPackageFlags struct {
	path string
	pkg  string
}

func addPathPackageFlags(flags *pflag.FlagSet, f *pathPackageFlags) {
	flags.StringVar(&f.path, "path", "", "Directory to resolve (defaults to --cwd)")
	flags.StringVar(&f.pkg, "package", "", "CUE package name to evaluate")
}

// resolveDir turns the --path flag (or base's --cwd) into an absolute
// directory path.
func resolveDir(cwd, path string) (string, error) {
	dir := path
	if dir == "" {
		dir = cwd
	}
	return filepath.Abs(dir)
}

// loadProject evaluates dir/pkg into a typed Project via ev.
func loadProject(ctx context.Context, ev evaluator.Evaluator, dir, pkg string) (project.Project, error) {
	eval, err := ev.EvaluateModule(ctx, dir, pkg, evaluator.EvaluateOptions{})
	if err != nil {
		return project.Project{}, err
	}
	return evaluator.Deserialize[project.Project](eval, ".")
}

// directoryIdentity bundles the derived keys most commands need once a
// Project is loaded: the 16-hex directory key, the hook-set-only approval
// hash, and the whole-config hash feeding instance_hash.
type directoryIdentity struct {
	DirKey       string
	ApprovalHash string
	ConfigHash   string
}

func computeIdentity(dir string, p project.Project) (directoryIdentity, error) {
	dirKey, err := fingerprint.DirectoryKey(turbopath.FromUpstream(dir))
	if err != nil {
		return directoryIdentity{}, err
	}
	approvalHash, err := project.ApprovalHash(p.Hooks)
	if err != nil {
		return directoryIdentity{}, err
	}
	configHash, err := project.ConfigHash(p)
	if err != nil {
		return directoryIdentity{}, err
	}
	return directoryIdentity{DirKey: dirKey, ApprovalHash: approvalHash, ConfigHash: configHash}, nil
}

// isCuenvDir reports whether dir even has a project to evaluate, used by
// commands (env check) that must stay silent outside a cuenv-managed
// directory rather than erroring.
func isCuenvDir(dir string) bool {
	for _, candidate := range []string{"env.cue", "cuenv.cue"} {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			return true
		}
	}
	return false
}

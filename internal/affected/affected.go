// Package affected computes which pipeline tasks are touched by a set of
// changed files, across project boundaries. Direct matches come from a
// task's declared input globs; affectedness then propagates transitively
// over internal (same-project) and external (#project:task) dependency
// edges to a fixpoint. The traversal pattern — walk a dependency graph by
// name, recording a tentative result before recursing so a cycle can't
// loop forever — is the same visited-before-recursing shape used to build
// a task graph from package dependency maps, adapted from a single
// in-process task graph to a graph that spans multiple projects.
package affected

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// TaskSpec is the minimal shape of a task needed to compute affectedness:
// its declared input globs and its dependency names (internal, bare; or
// external, "#project:task").
type TaskSpec struct {
	InputGlobs []string
	DependsOn  []string
}

// ProjectConfig is one project's task set, rooted at Root (repo-root
// relative; "" or "." for the repo root itself).
type ProjectConfig struct {
	Root  string
	Tasks map[string]TaskSpec
}

// ComputeAffectedTasks returns the subset of pipelineTasks affected by
// changedFiles (repo-root relative), in pipeline order.
func ComputeAffectedTasks(changedFiles []string, pipelineTasks []string, current ProjectConfig, allProjects map[string]ProjectConfig) []string {
	ctx := &context{
		allProjects:  allProjects,
		changedFiles: changedFiles,
		externalMemo: map[string]bool{},
	}

	affected := map[string]bool{}
	for name := range current.Tasks {
		if ctx.taskAffected(current, name, map[string]bool{}) {
			affected[name] = true
		}
	}

	var out []string
	for _, name := range pipelineTasks {
		if affected[name] {
			out = append(out, name)
		}
	}
	return out
}

type context struct {
	allProjects  map[string]ProjectConfig
	changedFiles []string
	externalMemo map[string]bool
}

// taskAffected determines whether one task within proj is affected: first
// by a direct input-glob match, then by transitively depending on an
// affected task (internal or external). visiting guards against an
// internal dependency cycle; it is not cached, only used to stop recursion
// within the current DFS.
func (c *context) taskAffected(proj ProjectConfig, taskName string, visiting map[string]bool) bool {
	task, ok := proj.Tasks[taskName]
	if !ok {
		return false
	}
	if matchesAny(task.InputGlobs, filesUnderRoot(proj.Root, c.changedFiles)) {
		return true
	}

	key := proj.Root + "#" + taskName
	if visiting[key] {
		return false
	}
	visiting[key] = true
	defer delete(visiting, key)

	for _, dep := range task.DependsOn {
		if isExternalRef(dep) {
			if c.checkExternalDependency(dep) {
				return true
			}
			continue
		}
		if c.taskAffected(proj, dep, visiting) {
			return true
		}
	}
	return false
}

// checkExternalDependency resolves "#project:task", recursing into the
// referenced project's task graph. A tentative false sentinel is recorded
// before recursing so a cycle that revisits the same ref short-circuits
// instead of looping; the true result overwrites the sentinel on return.
// Malformed refs (no colon, no matching project or task) are left at the
// sentinel's false value.
func (c *context) checkExternalDependency(ref string) bool {
	if v, ok := c.externalMemo[ref]; ok {
		return v
	}
	c.externalMemo[ref] = false

	projName, taskName, ok := parseExternalRef(ref)
	if !ok {
		return false
	}
	proj, ok := c.allProjects[projName]
	if !ok {
		return false
	}
	if _, ok := proj.Tasks[taskName]; !ok {
		return false
	}

	result := c.taskAffected(proj, taskName, map[string]bool{})
	c.externalMemo[ref] = result
	return result
}

func isExternalRef(dep string) bool {
	return strings.HasPrefix(dep, "#")
}

func parseExternalRef(ref string) (project, task string, ok bool) {
	trimmed := strings.TrimPrefix(ref, "#")
	idx := strings.Index(trimmed, ":")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+1:], true
}

// filesUnderRoot rebases repo-root-relative changedFiles onto root,
// returning only those that fall under it, project-root-relative.
func filesUnderRoot(root string, changedFiles []string) []string {
	if root == "" || root == "." {
		return changedFiles
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []string
	for _, f := range changedFiles {
		if strings.HasPrefix(f, prefix) {
			out = append(out, strings.TrimPrefix(f, prefix))
		}
	}
	return out
}

var globMetaRe = regexp.MustCompile(`[*?\[\{]`)

func matchesAny(globs []string, files []string) bool {
	for _, g := range globs {
		for _, f := range files {
			if globMatches(g, f) {
				return true
			}
		}
	}
	return false
}

// globMatches uses prefix semantics for a wildcard-free glob (so a
// declared input of "src" matches a changed file "src/lib.rs") and full
// doublestar glob semantics otherwise.
func globMatches(pattern, file string) bool {
	if !globMetaRe.MatchString(pattern) {
		return strings.HasPrefix(file, pattern)
	}
	ok, err := doublestar.Match(pattern, file)
	return err == nil && ok
}

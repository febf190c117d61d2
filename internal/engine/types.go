// Package engine runs a project's task graph: it orders tasks by
// dependency (each task starts as soon as its own dependencies have
// completed; there is no barrier between dependency levels, so a task does
// not wait for unrelated tasks of an earlier level), resolves and hashes each task's declared
// inputs, consults the content-addressed cache, and otherwise seeds a
// hermetic workdir and spawns the task. Sequential and Parallel composite
// groups nest inside a single graph vertex and run their own internal
// semantics once that vertex is reached.
package engine

import (
	"time"

	"github.com/cuenv/cuenv/internal/env"
)

// ShellWrap says to run command+args as a single shell-string argument
// through an interactive-style shell invocation, e.g. {"bash", "-c"}.
type ShellWrap struct {
	Command string
	Flag    string
}

// Node is either a Task or a Group. Both carry a Name (unique within the
// graph passed to Execute) and a DependsOn list of other node Names.
type Node interface {
	nodeName() string
	dependsOn() []string
}

// Task is one leaf unit of work.
type Task struct {
	Name        string
	Command     string
	Args        []string
	Shell       *ShellWrap
	InputGlobs  []string
	OutputGlobs []string
	Env         map[string]string
	DependsOn   []string
	Timeout     time.Duration
	// Inherit streams stdout/stderr to the parent process instead of
	// capturing them into buffers destined for the cached log files.
	Inherit bool
}

func (t *Task) nodeName() string    { return t.Name }
func (t *Task) dependsOn() []string { return t.DependsOn }

// GroupKind selects composite semantics for a Group node.
type GroupKind int

const (
	// Sequential runs children in order, stopping at the first failure.
	Sequential GroupKind = iota
	// Parallel runs children concurrently, still bounded by the runner's
	// overall concurrency limit.
	Parallel
)

// Group is a composite node: Sequential or Parallel over its Children.
// Children are not separate vertices in the top-level dependency graph —
// they run as part of visiting the Group's single vertex.
type Group struct {
	Name      string
	Kind      GroupKind
	Children  []Node
	DependsOn []string
}

func (g *Group) nodeName() string    { return g.Name }
func (g *Group) dependsOn() []string { return g.DependsOn }

// Result is the outcome of running one Task (groups report one Result per
// leaf task they contain, in completion order).
type Result struct {
	Name     string
	ExitCode int
	CacheHit bool
	Err      error
	Duration time.Duration
}

// RunnerConfig is fixed across a single Execute call.
type RunnerConfig struct {
	ProjectRoot  string
	BaseEnv      env.EnvironmentVariableMap
	CuenvVersion string
	Platform     string
	// MaxParallel bounds concurrently-spawned tasks across the whole run.
	// Zero means unlimited.
	MaxParallel int
}

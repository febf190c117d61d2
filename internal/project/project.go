// Package project is the typed domain model a cuenv command builds once
// per invocation from a config-evaluator instance: the Project the
// directory declares, its hook set, and its task tree. It is the seam
// between internal/evaluator's untyped JSON and every other component
// (hooks, engine, taskindex, affected), the same role internal/fs's
// TurboJSON played for the teacher's turbo.json.
package project

import (
	"time"

	"github.com/cuenv/cuenv/internal/fingerprint"
)

// Hook is one entry in a directory's onEnter/onExit/prePush map.
type Hook struct {
	Command    string        `json:"command"`
	Args       []string      `json:"args,omitempty"`
	Dir        string        `json:"dir,omitempty"`
	Order      int           `json:"order"`
	Propagate  bool          `json:"propagate,omitempty"`
	Source     bool          `json:"source,omitempty"`
	InputGlobs []string      `json:"inputs,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// Hooks is the union of a directory's hook maps. Only this struct, not the
// rest of Project, feeds the approval hash.
type Hooks struct {
	OnEnter map[string]Hook `json:"onEnter,omitempty"`
	OnExit  map[string]Hook `json:"onExit,omitempty"`
	PrePush map[string]Hook `json:"prePush,omitempty"`
}

// ApprovalHash returns the SHA-256 of h's canonical JSON serialization. Any
// change to h (add, remove, or modify a hook) changes the hash; changes
// anywhere else in Project never do.
func ApprovalHash(h Hooks) (string, error) {
	return fingerprint.Sha256CanonicalJSON(h)
}

// Task is one leaf task definition as the evaluator reports it.
type Task struct {
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Shell       string            `json:"shell,omitempty"`
	ShellFlag   string            `json:"shellFlag,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	DependsOn   []string          `json:"dependsOn,omitempty"`
	Inputs      []string          `json:"inputs,omitempty"`
	Outputs     []string          `json:"outputs,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
}

// TaskNode is the tagged-union shape the evaluator reports for one entry in
// a project's task tree: a leaf Task, a Group of named children, or an
// ordered Sequence. Exactly one of Task/Group/Sequence is populated,
// selected by Kind.
type TaskNode struct {
	Kind     NodeKind            `json:"kind"`
	Task     *Task               `json:"task,omitempty"`
	Group    map[string]TaskNode `json:"group,omitempty"`
	Sequence []TaskNode          `json:"sequence,omitempty"`
}

// NodeKind discriminates TaskNode's variant.
type NodeKind string

const (
	NodeTask     NodeKind = "task"
	NodeGroup    NodeKind = "group"
	NodeSequence NodeKind = "sequence"
)

// Project is the fully typed config a directory's env.cue declares.
type Project struct {
	Name  string              `json:"name"`
	Env   map[string]string   `json:"env,omitempty"`
	Hooks Hooks               `json:"hooks,omitempty"`
	Tasks map[string]TaskNode `json:"tasks,omitempty"`
}

// ConfigHash returns the SHA-256 of p's canonical JSON serialization, used
// as the config_hash half of a hook execution's instance_hash. Unlike
// ApprovalHash, this covers the whole Project: any change that could alter
// what a hook run captures (env, not just the hook set itself) must start
// a fresh instance, while approval stays keyed on the hook set alone.
func ConfigHash(p Project) (string, error) {
	return fingerprint.Sha256CanonicalJSON(p)
}

package project

import (
	"sort"
	"strconv"

	"github.com/cuenv/cuenv/internal/affected"
	"github.com/cuenv/cuenv/internal/engine"
	"github.com/cuenv/cuenv/internal/hooks"
	"github.com/cuenv/cuenv/internal/taskindex"
)

// HookSlice flattens a named hook map into hooks.Hook values, in
// deterministic (name-sorted) order; hooks.SortHooks re-sorts by
// (order, name) afterward, so the input order here only needs to be
// deterministic, not final.
func HookSlice(named map[string]Hook) []hooks.Hook {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]hooks.Hook, 0, len(named))
	for _, name := range names {
		h := named[name]
		out = append(out, hooks.Hook{
			Command:    h.Command,
			Args:       h.Args,
			Dir:        h.Dir,
			Order:      h.Order,
			Propagate:  h.Propagate,
			Source:     h.Source,
			InputGlobs: h.InputGlobs,
			Name:       name,
			Timeout:    h.Timeout,
		})
	}
	return out
}

// FlatTaskTree is a project's task tree flattened into a single pass: a
// structural taskindex.RawNode tree (names/kinds/dependencies only) plus a
// parallel map from every canonical leaf name, including synthetic names
// invented for Sequence children, to the Task content the engine needs to
// actually run it. Building both from one walk keeps the synthetic naming
// for Sequence positions (parentPath + "#" + index) consistent between the
// two views.
type FlatTaskTree struct {
	Raw   map[string]taskindex.RawNode
	Tasks map[string]Task
}

// Flatten walks a project's task tree once, top level first.
func Flatten(tree map[string]TaskNode) FlatTaskTree {
	f := FlatTaskTree{
		Raw:   map[string]taskindex.RawNode{},
		Tasks: map[string]Task{},
	}
	for name, node := range tree {
		f.Raw[name] = f.flattenNode(node, name)
	}
	return f
}

func (f FlatTaskTree) flattenNode(node TaskNode, path string) taskindex.RawNode {
	switch node.Kind {
	case NodeGroup:
		children := make(map[string]taskindex.RawNode, len(node.Group))
		for name, child := range node.Group {
			children[name] = f.flattenNode(child, path+"."+name)
		}
		return taskindex.RawNode{Kind: taskindex.RawGroup, Children: children}
	case NodeSequence:
		seq := make([]taskindex.RawNode, len(node.Sequence))
		for i, child := range node.Sequence {
			seq[i] = f.flattenNode(child, sequenceChildName(path, i))
		}
		return taskindex.RawNode{Kind: taskindex.RawSequence, SeqChildren: seq}
	default:
		var deps []string
		if node.Task != nil {
			deps = node.Task.DependsOn
			f.Tasks[path] = *node.Task
		}
		return taskindex.RawNode{Kind: taskindex.RawLeaf, DependsOn: deps}
	}
}

func sequenceChildName(parentPath string, index int) string {
	return parentPath + "#" + strconv.Itoa(index)
}

// ToEngineTask converts one leaf Task, addressed at canonical name, into
// the engine's runnable Task node.
func ToEngineTask(name string, t Task) *engine.Task {
	var shell *engine.ShellWrap
	if t.Shell != "" {
		shell = &engine.ShellWrap{Command: t.Shell, Flag: t.ShellFlag}
	}
	return &engine.Task{
		Name:        name,
		Command:     t.Command,
		Args:        t.Args,
		Shell:       shell,
		InputGlobs:  t.Inputs,
		OutputGlobs: t.Outputs,
		Env:         t.Env,
		DependsOn:   t.DependsOn,
		Timeout:     t.Timeout,
	}
}

// ToEngineNode converts one indexed task (resolved by taskindex from a
// FlatTaskTree.Raw tree) into an engine.Node ready for Runner.Execute. A
// Sequence's children were given synthetic positional names during
// Flatten, which tasks already keys by.
func ToEngineNode(idx *taskindex.IndexedTask, tasks map[string]Task) engine.Node {
	name := idx.Path.Canonical()
	if idx.Kind == taskindex.Leaf {
		return ToEngineTask(name, tasks[name])
	}
	return sequenceToEngineGroup(name, idx.DependsOn, idx.SeqChildren, tasks)
}

// TasksWithLabels returns every leaf task name in flat whose Labels contain
// every entry in want (AND-combined), in sorted order for deterministic
// output.
func TasksWithLabels(flat FlatTaskTree, want []string) []string {
	var names []string
	for name, t := range flat.Tasks {
		if hasAllLabels(t.Labels, want) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func hasAllLabels(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, l := range have {
		set[l] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// ToAffectedConfig builds the view internal/affected needs for one project:
// every indexed task name (leaf or sequence) with its dependency edges, and
// its input globs when it is a leaf.
func ToAffectedConfig(root string, p Project) (affected.ProjectConfig, error) {
	flat := Flatten(p.Tasks)
	idx, err := taskindex.Build(flat.Raw)
	if err != nil {
		return affected.ProjectConfig{}, err
	}

	cfg := affected.ProjectConfig{Root: root, Tasks: map[string]affected.TaskSpec{}}
	for _, name := range idx.Names() {
		task, _ := idx.Lookup(name)
		spec := affected.TaskSpec{DependsOn: task.DependsOn}
		if task.Kind == taskindex.Leaf {
			spec.InputGlobs = flat.Tasks[name].Inputs
		}
		cfg.Tasks[name] = spec
	}
	return cfg, nil
}

func sequenceToEngineGroup(name string, dependsOn []string, seqChildren []taskindex.RawNode, tasks map[string]Task) *engine.Group {
	children := make([]engine.Node, len(seqChildren))
	for i, child := range seqChildren {
		childName := sequenceChildName(name, i)
		if child.Kind == taskindex.RawSequence {
			children[i] = sequenceToEngineGroup(childName, child.DependsOn, child.SeqChildren, tasks)
			continue
		}
		children[i] = ToEngineTask(childName, tasks[childName])
	}
	return &engine.Group{Name: name, Kind: engine.Sequential, Children: children, DependsOn: dependsOn}
}

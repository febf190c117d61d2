package taskindex

import (
	"fmt"
	"sort"
	"strings"
)

// RawKind distinguishes the three node shapes the evaluator can hand back
// for one name in the hierarchical task map.
type RawKind int

const (
	// RawLeaf is a single runnable task.
	RawLeaf RawKind = iota
	// RawGroup recurses into dotted child paths (e.g. deploy.preview).
	RawGroup
	// RawSequence is an ordered composite addressed as one unit at its own
	// path; its children are not individually resolvable by name, which
	// keeps dependency references stable when entries are reordered.
	RawSequence
)

// TaskKind says whether an indexed entry is a single task or a sequence
// composite; Group nodes never produce their own entry, only child entries.
type TaskKind int

const (
	// Leaf is a single runnable task.
	Leaf TaskKind = iota
	// Sequence is an ordered composite, resolved as one unit.
	Sequence
)

// RawNode is the evaluator's view of one entry in the hierarchical task
// map, before indexing. DependsOn names are taken as already-canonical
// paths the evaluator resolved; the index does not re-resolve them.
type RawNode struct {
	Kind        RawKind
	DependsOn   []string
	Children    map[string]RawNode // for RawGroup
	SeqChildren []RawNode          // for RawSequence, in order
}

// IndexedTask is one resolvable entry: a leaf task or a sequence composite.
type IndexedTask struct {
	Kind TaskKind
	// Path is the canonical path (underscore-stripped for hidden tasks).
	Path TaskPath
	// Original is the path as it appeared in the source tree, underscore
	// prefix included for hidden top-level tasks.
	Original  TaskPath
	Hidden    bool
	DependsOn []string
	// SeqChildren holds the ordered composite members when Kind == Sequence.
	SeqChildren []RawNode
}

// Index is the flat, resolvable view of a project's task tree.
type Index struct {
	byCanonical map[string]*IndexedTask
	order       []string // insertion order, for stable suggestion/listing output
}

// Build walks tree (the top-level hierarchical task map) and returns a
// resolvable Index.
func Build(tree map[string]RawNode) (*Index, error) {
	idx := &Index{byCanonical: map[string]*IndexedTask{}}
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		hidden := strings.HasPrefix(name, "_")
		display := strings.TrimPrefix(name, "_")
		if display == "" {
			return nil, fmt.Errorf("taskindex: top-level name %q has no content after stripping '_'", name)
		}
		if err := idx.index(tree[name], TaskPath{display}, TaskPath{name}, hidden); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) index(node RawNode, path, original TaskPath, hidden bool) error {
	canonical := path.Canonical()
	switch node.Kind {
	case RawLeaf:
		if _, exists := idx.byCanonical[canonical]; exists {
			return fmt.Errorf("taskindex: duplicate task path %q", canonical)
		}
		idx.byCanonical[canonical] = &IndexedTask{
			Kind:      Leaf,
			Path:      path,
			Original:  original,
			Hidden:    hidden,
			DependsOn: node.DependsOn,
		}
		idx.order = append(idx.order, canonical)
		return nil
	case RawSequence:
		if _, exists := idx.byCanonical[canonical]; exists {
			return fmt.Errorf("taskindex: duplicate task path %q", canonical)
		}
		idx.byCanonical[canonical] = &IndexedTask{
			Kind:        Sequence,
			Path:        path,
			Original:    original,
			Hidden:      hidden,
			DependsOn:   node.DependsOn,
			SeqChildren: node.SeqChildren,
		}
		idx.order = append(idx.order, canonical)
		return nil
	case RawGroup:
		childNames := make([]string, 0, len(node.Children))
		for name := range node.Children {
			childNames = append(childNames, name)
		}
		sort.Strings(childNames)
		for _, name := range childNames {
			if err := idx.index(node.Children[name], path.Child(name), original.Child(name), hidden); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("taskindex: unknown node kind for %q", canonical)
	}
}

// Names returns every canonical path in the index, in deterministic order.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Lookup returns the task at canonical path p, if any.
func (idx *Index) Lookup(canonical string) (*IndexedTask, bool) {
	t, ok := idx.byCanonical[canonical]
	return t, ok
}

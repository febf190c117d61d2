package project

import (
	"testing"

	"github.com/cuenv/cuenv/internal/engine"
	"github.com/cuenv/cuenv/internal/taskindex"
	"github.com/stretchr/testify/require"
)

func TestApprovalHashIgnoresNonHookFields(t *testing.T) {
	hooks := Hooks{OnEnter: map[string]Hook{"a": {Command: "echo", Order: 1}}}

	p1 := Project{Name: "one", Hooks: hooks}
	p2 := Project{Name: "two", Env: map[string]string{"X": "1"}, Hooks: hooks}

	h1, err := ApprovalHash(p1.Hooks)
	require.NoError(t, err)
	h2, err := ApprovalHash(p2.Hooks)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestApprovalHashChangesWithHookSet(t *testing.T) {
	base, err := ApprovalHash(Hooks{OnEnter: map[string]Hook{"a": {Command: "echo"}}})
	require.NoError(t, err)
	changed, err := ApprovalHash(Hooks{OnEnter: map[string]Hook{"a": {Command: "echo2"}}})
	require.NoError(t, err)
	require.NotEqual(t, base, changed)
}

func TestHookSliceIsDeterministicallyOrdered(t *testing.T) {
	named := map[string]Hook{
		"zeta":  {Command: "echo", Order: 1},
		"alpha": {Command: "echo", Order: 1},
	}
	slice := HookSlice(named)
	require.Len(t, slice, 2)
	require.Equal(t, "alpha", slice[0].Name)
	require.Equal(t, "zeta", slice[1].Name)
}

func TestFlattenSequenceGetsSyntheticPositionalNames(t *testing.T) {
	tree := map[string]TaskNode{
		"release": {
			Kind: NodeSequence,
			Sequence: []TaskNode{
				{Kind: NodeTask, Task: &Task{Command: "echo", Args: []string{"1"}}},
				{Kind: NodeTask, Task: &Task{Command: "echo", Args: []string{"2"}}},
			},
		},
	}
	flat := Flatten(tree)

	idx, err := taskindex.Build(flat.Raw)
	require.NoError(t, err)

	task, ok := idx.Lookup("release")
	require.True(t, ok)
	require.Equal(t, taskindex.Sequence, task.Kind)

	node := ToEngineNode(task, flat.Tasks)
	group, ok := node.(*engine.Group)
	require.True(t, ok)
	require.Len(t, group.Children, 2)
	require.Equal(t, engine.Sequential, group.Kind)

	first, ok := group.Children[0].(*engine.Task)
	require.True(t, ok)
	require.Equal(t, []string{"1"}, first.Args)
}

func TestFlattenGroupRecursesIntoDottedPaths(t *testing.T) {
	tree := map[string]TaskNode{
		"deploy": {
			Kind: NodeGroup,
			Group: map[string]TaskNode{
				"preview": {Kind: NodeTask, Task: &Task{Command: "echo"}},
			},
		},
	}
	flat := Flatten(tree)
	idx, err := taskindex.Build(flat.Raw)
	require.NoError(t, err)

	task, ok := idx.Lookup("deploy.preview")
	require.True(t, ok)
	require.Equal(t, taskindex.Leaf, task.Kind)
	require.Contains(t, flat.Tasks, "deploy.preview")
}

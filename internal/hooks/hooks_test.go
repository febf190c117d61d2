package hooks

import (
	"context"
	"runtime"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/statestore"
)

func TestSortHooksByOrderThenName(t *testing.T) {
	hooks := []Hook{
		{Name: "b", Order: 1},
		{Name: "a", Order: 1},
		{Name: "z", Order: 0},
	}
	SortHooks(hooks)
	require.Equal(t, []string{"z", "a", "b"}, []string{hooks[0].Name, hooks[1].Name, hooks[2].Name})
}

func TestGatherHooksIncludesCurrentAlwaysAncestorsOnlyIfPropagate(t *testing.T) {
	ancestors := [][]Hook{
		{{Name: "root-propagate", Propagate: true, Order: 0}, {Name: "root-local", Propagate: false, Order: 0}},
	}
	current := []Hook{{Name: "leaf", Order: 0}}

	gathered := GatherHooks(ancestors, current)
	names := make([]string, 0, len(gathered))
	for _, h := range gathered {
		names = append(names, h.Name)
	}
	require.Contains(t, names, "root-propagate")
	require.Contains(t, names, "leaf")
	require.NotContains(t, names, "root-local")
}

func TestParseExportsHandlesQuotedAndBareAssignments(t *testing.T) {
	stdout := "export FOO=\"bar\"\nBAZ=qux\nignored line\nexport ESCAPED=\"a\\\"b\\$c\"\n"
	parsed := parseExports(stdout)
	require.Equal(t, "bar", parsed["FOO"])
	require.Equal(t, "qux", parsed["BAZ"])
	require.Equal(t, `a"b$c`, parsed["ESCAPED"])
	require.NotContains(t, parsed, "ignored")
}

func TestRunCompletesAndCapturesSourcedEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	dir := t.TempDir()
	store, err := statestore.New(dir, nil)
	require.NoError(t, err)
	manager := process.NewManager(hclog.NewNullLogger())
	sv := NewSupervisor(store, manager, hclog.NewNullLogger())

	hook := Hook{
		Command: "/bin/sh",
		Args:    []string{"-c", `echo 'export GREETING="hello"'`},
		Dir:     dir,
		Name:    "greet",
		Source:  true,
	}

	err = sv.Run(context.Background(), dir, "dirkey", "instance-1", "confighash", []Hook{hook}, env.EnvironmentVariableMap{})
	require.NoError(t, err)

	state, err := store.LoadState("instance-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, statestore.StatusCompleted, state.Status)
	require.Equal(t, 1, state.CompletedHooks)
	require.Equal(t, "hello", state.EnvironmentVars["GREETING"])
	require.True(t, store.HasActiveMarker("dirkey"))
}

func TestRunFailsAndClearsMarkerOnNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	dir := t.TempDir()
	store, err := statestore.New(dir, nil)
	require.NoError(t, err)
	manager := process.NewManager(hclog.NewNullLogger())
	sv := NewSupervisor(store, manager, hclog.NewNullLogger())

	hook := Hook{Command: "/bin/sh", Args: []string{"-c", "exit 1"}, Dir: dir, Name: "boom"}

	err = sv.Run(context.Background(), dir, "dirkey2", "instance-2", "confighash", []Hook{hook}, env.EnvironmentVariableMap{})
	require.Error(t, err)

	state, err := store.LoadState("instance-2")
	require.NoError(t, err)
	require.Equal(t, statestore.StatusFailed, state.Status)
	require.Equal(t, 0, state.CompletedHooks)
	require.False(t, store.HasActiveMarker("dirkey2"))
}

func TestRunSkipsWhenAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	store, err := statestore.New(dir, nil)
	require.NoError(t, err)
	manager := process.NewManager(hclog.NewNullLogger())
	sv := NewSupervisor(store, manager, hclog.NewNullLogger())

	running := &statestore.State{InstanceHash: "instance-3", TotalHooks: 1, Status: statestore.StatusRunning}
	require.NoError(t, store.SaveState(running))

	err = sv.Run(context.Background(), dir, "dirkey3", "instance-3", "confighash", []Hook{{Command: "/bin/true", Name: "noop"}}, env.EnvironmentVariableMap{})
	require.NoError(t, err)

	state, err := store.LoadState("instance-3")
	require.NoError(t, err)
	require.Equal(t, statestore.StatusRunning, state.Status)
}

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvStatusWithNoActiveStateReportsNone(t *testing.T) {
	root, out := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))

	root.SetArgs([]string{"env", "status", "--cwd", dir, "--format", "short"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "none")
}

func TestEnvLoadWithNoHooksCompletesAndStatusReflectsIt(t *testing.T) {
	root, out := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))
	t.Setenv("CUENV_FOREGROUND_HOOKS", "1")

	root.SetArgs([]string{"env", "load", "--cwd", dir})
	require.NoError(t, root.Execute())

	out.Reset()
	root.SetArgs([]string{"env", "status", "--cwd", dir, "--format", "short"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "completed")
}

func TestEnvInspectOnUnloadedDirectoryReportsNoState(t *testing.T) {
	root, out := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))

	root.SetArgs([]string{"env", "inspect", "--cwd", dir})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "no captured state")
}
